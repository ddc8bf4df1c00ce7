// Package client is the Go client for the leadtrack API: a retrying HTTP
// client, a push-channel listener with reconnection, and a sync coordinator
// that keeps a local collection cache consistent under concurrent change
// sources.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnwards/leadtrack/internal/domain"
)

// Sentinel errors surfaced through APIError.Unwrap so callers can branch
// with errors.Is.
var (
	ErrNotFound   = errors.New("lead not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode    int
	Message       string
	Category      string
	CorrelationID string
	Fields        []domain.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d category=%s message=%s", e.StatusCode, e.Category, e.Message)
}

// Unwrap maps well-known statuses onto sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest:
		return ErrValidation
	}
	return nil
}

// Options configures a Client. Zero values get sensible defaults.
type Options struct {
	BaseURL    string
	AuthToken  string
	SessionID  string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client talks to the leadtrack REST API. Transient failures (network
// errors, 429s, 5xx) are retried with exponential backoff honouring
// Retry-After; everything else surfaces as an APIError.
type Client struct {
	baseURL    string
	authToken  string
	sessionID  string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// New creates a Client. A session id is generated when none is supplied; it
// tags every mutation so this client can recognise its own push echoes.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	sessionID := strings.TrimSpace(opts.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		authToken:  opts.AuthToken,
		sessionID:  sessionID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// SessionID returns the id this client tags its mutations with.
func (c *Client) SessionID() string {
	return c.sessionID
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListQuery controls pagination, sorting and search for ListLeads.
type ListQuery struct {
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
	Search   string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	// Always explicit: the server defaults to descending when the parameter
	// is absent, so an ascending query must say so.
	v.Set("sort_desc", strconv.FormatBool(q.SortDesc))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// LeadPage is one page of leads with its pagination envelope.
type LeadPage struct {
	Items      []domain.Lead `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ListLeads fetches one page of leads.
func (c *Client) ListLeads(ctx context.Context, q ListQuery) (*LeadPage, error) {
	var page LeadPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/leads", q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetLead fetches a single lead.
func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/leads/"+id, nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateLead creates a lead.
func (c *Client) CreateLead(ctx context.Context, input domain.LeadInput) (*domain.Lead, error) {
	var lead domain.Lead
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/leads", nil, input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// UpdateLead applies a patch to a lead. The patch type decides whether the
// update carries stage keys.
func (c *Client) UpdateLead(ctx context.Context, id string, patch domain.Patch) (*domain.Lead, error) {
	var lead domain.Lead
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/leads/"+id, nil, patch.UpdateBody(), &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// DeleteLead deletes a lead and returns the deleted record.
func (c *Client) DeleteLead(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := c.doJSON(ctx, http.MethodDelete, "/api/v1/leads/"+id, nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// StageInfo is one pipeline stage as reported by the server.
type StageInfo struct {
	Name     domain.Stage `json:"name"`
	Index    int          `json:"index"`
	Progress int          `json:"progress"`
}

// Stages fetches the pipeline definition.
func (c *Client) Stages(ctx context.Context) ([]StageInfo, error) {
	var body struct {
		Items []StageInfo `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/stages", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// ExportCSV streams the CSV export to w and returns the server-suggested
// filename. The export covers the full filtered set, not one page.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer, search string) (string, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/leads/export", query, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", decodeAPIError(resp.StatusCode, body)
	}

	filename := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if i := strings.Index(cd, "filename="); i >= 0 {
			filename = strings.Trim(cd[i+len("filename="):], `"`)
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return filename, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("X-Session-Id", c.sessionID)
	return req, nil
}

// doJSON performs one API call with bounded retry. Mutations are retried
// too: creates are guarded server-side by the unique email index, updates
// and deletes are idempotent.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, method, path, query, body)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return decodeAPIError(resp.StatusCode, respBody)
	}
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}
	var envelope struct {
		Message       string `json:"message"`
		Category      string `json:"category"`
		CorrelationID string `json:"correlationId"`
		Errors        []struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
		apiErr.Category = envelope.Category
		apiErr.CorrelationID = envelope.CorrelationID
		for _, d := range envelope.Errors {
			apiErr.Fields = append(apiErr.Fields, domain.FieldError{Field: d.Field, Message: d.Message})
		}
	}
	return apiErr
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
