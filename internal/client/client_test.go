package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnwards/leadtrack/internal/client"
	"github.com/johnwards/leadtrack/internal/domain"
)

func fastClient(serverURL string) *client.Client {
	return client.New(client.Options{
		BaseURL:   serverURL,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Lead{ID: "1", Name: "Jane Doe"})
	}))
	defer srv.Close()

	lead, err := fastClient(srv.URL).GetLead(context.Background(), "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lead.Name != "Jane Doe" {
		t.Errorf("unexpected lead: %+v", lead)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).GetLead(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 APIError, got %v", err)
	}
	// Initial attempt plus the default three retries.
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 attempts, got %d", got)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "error",
			"message":       "A lead with this email already exists",
			"category":      "CONFLICT",
			"correlationId": "abc-123",
		})
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).CreateLead(context.Background(), domain.LeadInput{
		Name: "Jane", Email: "jane@acme.com", Company: "Acme", CurrentStage: domain.StageNewLead,
	})
	if !errors.Is(err, client.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Message != "A lead with this email already exists" || apiErr.CorrelationID != "abc-123" {
		t.Errorf("envelope not decoded: %+v", apiErr)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt for a 409, got %d", got)
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "error",
			"message":  "Validation failed",
			"category": "VALIDATION_ERROR",
			"errors": []map[string]string{
				{"message": "must be a valid email address", "field": "email"},
			},
		})
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).CreateLead(context.Background(), domain.LeadInput{})
	if !errors.Is(err, client.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "email" {
		t.Errorf("expected field details, got %+v", apiErr.Fields)
	}
}

func TestNotFoundSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "error", "message": "Lead not found", "category": "NOT_FOUND",
		})
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).GetLead(context.Background(), "9999")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestsCarrySessionID(t *testing.T) {
	var gotSession atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession.Store(r.Header.Get("X-Session-Id"))
		_ = json.NewEncoder(w).Encode(client.LeadPage{})
	}))
	defer srv.Close()

	c := client.New(client.Options{BaseURL: srv.URL, SessionID: "session-42"})
	if _, err := c.ListLeads(context.Background(), client.ListQuery{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotSession.Load() != "session-42" {
		t.Errorf("expected X-Session-Id header, got %v", gotSession.Load())
	}

	// A session id is generated when none is supplied.
	if client.New(client.Options{}).SessionID() == "" {
		t.Error("expected a generated session id")
	}
}

func TestRetryAfterHonoured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(client.LeadPage{Total: 1})
	}))
	defer srv.Close()

	page, err := fastClient(srv.URL).ListLeads(context.Background(), client.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("unexpected page: %+v", page)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected a retry after 429, got %d attempts", got)
	}
}
