package conformance_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
)

// doRequest makes an HTTP request to the test server and returns the response.
// The caller is responsible for closing the response body.
func doRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return doRequestAs(t, method, path, body, "")
}

// doRequestAs is doRequest with an explicit session id header, for tests that
// exercise echo attribution.
func doRequestAs(t *testing.T, method, path string, body any, sessionID string) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL+path, bodyReader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readJSON reads the response body and unmarshals it into a map.
func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal response (status %d): body=%s err=%v", resp.StatusCode, string(b), err)
	}
	return result
}

// mustStatus asserts the HTTP response has the expected status code.
func mustStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d; body=%s", expected, resp.StatusCode, string(b))
	}
}

// resetServer calls POST /_leadtrack/reset to return the server to its seeded
// state.
func resetServer(t *testing.T) {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/_leadtrack/reset", nil)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("reset server failed: status=%d body=%s", resp.StatusCode, string(b))
	}
}

// createTestLead posts a minimal valid lead and returns its decoded body.
func createTestLead(t *testing.T, name, email string) map[string]any {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/api/v1/leads", map[string]any{
		"name":          name,
		"email":         email,
		"company":       "Conformance Inc",
		"current_stage": "New Lead",
	})
	mustStatus(t, resp, http.StatusCreated)
	return readJSON(t, resp)
}

// leadID extracts the id of a decoded lead.
func leadID(t *testing.T, lead map[string]any) string {
	t.Helper()
	id, ok := lead["id"].(string)
	if !ok || id == "" {
		t.Fatalf("lead has no id: %+v", lead)
	}
	return id
}

// assertErrorEnvelope validates the standard error envelope shape.
func assertErrorEnvelope(t *testing.T, body map[string]any, expectedCategory string) {
	t.Helper()
	assertStringField(t, body, "status", "error")
	assertFieldPresent(t, body, "message")
	assertFieldPresent(t, body, "correlationId")
	if expectedCategory != "" {
		assertStringField(t, body, "category", expectedCategory)
	}
}

// assertFieldPresent checks that a key exists in the map.
func assertFieldPresent(t *testing.T, body map[string]any, key string) {
	t.Helper()
	if _, ok := body[key]; !ok {
		t.Errorf("expected field %q in response: %+v", key, body)
	}
}

// assertStringField checks that a key has the expected string value.
func assertStringField(t *testing.T, body map[string]any, key, expected string) {
	t.Helper()
	v, ok := body[key].(string)
	if !ok {
		t.Errorf("expected field %q to be a string, got %T", key, body[key])
		return
	}
	if v != expected {
		t.Errorf("expected %s=%q, got %q", key, expected, v)
	}
}

// uniqueEmail generates a throwaway email for tests that do not reset.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@conformance.test", prefix, emailCounter())
}

var emailSeq int

func emailCounter() int {
	emailSeq++
	return emailSeq
}
