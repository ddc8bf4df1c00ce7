package conformance_test

import (
	"net/http"
	"testing"
)

func TestLeadLifecycle(t *testing.T) {
	resetServer(t)

	created := createTestLead(t, "Lifecycle Lead", uniqueEmail("lifecycle"))
	id := leadID(t, created)

	if created["current_stage"] != "New Lead" {
		t.Errorf("expected current_stage=New Lead, got %v", created["current_stage"])
	}
	if created["status"] != "Not Engaged" {
		t.Errorf("expected derived status Not Engaged, got %v", created["status"])
	}
	history, ok := created["stage_history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("expected 1 ledger entry on creation, got %v", created["stage_history"])
	}
	first := history[0].(map[string]any)
	if _, hasFrom := first["from_stage"]; hasFrom && first["from_stage"] != nil {
		t.Errorf("creation entry must have null from_stage, got %v", first["from_stage"])
	}

	// Read it back.
	resp := doRequest(t, http.MethodGet, "/api/v1/leads/"+id, nil)
	mustStatus(t, resp, http.StatusOK)
	got := readJSON(t, resp)
	if got["email"] != created["email"] {
		t.Errorf("lead did not round-trip: %v", got)
	}

	// Edit fields; the ledger must not move.
	resp = doRequest(t, http.MethodPut, "/api/v1/leads/"+id, map[string]any{
		"name":    "Lifecycle Lead Renamed",
		"engaged": true,
	})
	mustStatus(t, resp, http.StatusOK)
	updated := readJSON(t, resp)
	if updated["status"] != "Engaged" {
		t.Errorf("status should follow engaged, got %v", updated["status"])
	}
	if len(updated["stage_history"].([]any)) != 1 {
		t.Errorf("field edit moved the ledger: %v", updated["stage_history"])
	}

	// Change stage; the ledger grows by one.
	resp = doRequest(t, http.MethodPut, "/api/v1/leads/"+id, map[string]any{
		"current_stage": "Initial Contact",
	})
	mustStatus(t, resp, http.StatusOK)
	staged := readJSON(t, resp)
	if staged["current_stage"] != "Initial Contact" {
		t.Errorf("expected stage change, got %v", staged["current_stage"])
	}
	history = staged["stage_history"].([]any)
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(history))
	}
	second := history[1].(map[string]any)
	if second["from_stage"] != "New Lead" || second["to_stage"] != "Initial Contact" {
		t.Errorf("unexpected transition entry: %v", second)
	}
	if staged["stage_updated_at"] != second["changed_at"] {
		t.Errorf("stage_updated_at should equal the last entry's changed_at")
	}

	// Delete returns the deleted record; a second delete 404s.
	resp = doRequest(t, http.MethodDelete, "/api/v1/leads/"+id, nil)
	mustStatus(t, resp, http.StatusOK)
	deleted := readJSON(t, resp)
	if deleted["id"] != id {
		t.Errorf("expected the deleted lead back, got %v", deleted)
	}

	resp = doRequest(t, http.MethodDelete, "/api/v1/leads/"+id, nil)
	mustStatus(t, resp, http.StatusNotFound)
	assertErrorEnvelope(t, readJSON(t, resp), "NOT_FOUND")
}

func TestSeedDataIsPresent(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodGet, "/api/v1/leads?page_size=50", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	if body["total"].(float64) != 9 {
		t.Errorf("expected 9 seed leads, got %v", body["total"])
	}
	items := body["items"].([]any)
	names := map[string]bool{}
	for _, item := range items {
		names[item.(map[string]any)["name"].(string)] = true
	}
	for _, want := range []string{"Aria Frost", "Noah Chen", "Finn Hayes"} {
		if !names[want] {
			t.Errorf("seed lead %q missing", want)
		}
	}
}

func TestPaginationEnvelope(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodGet, "/api/v1/leads?page=2&page_size=4&sort_by=name", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	if body["page"].(float64) != 2 || body["page_size"].(float64) != 4 {
		t.Errorf("echoed paging wrong: page=%v page_size=%v", body["page"], body["page_size"])
	}
	if body["total"].(float64) != 9 || body["total_pages"].(float64) != 3 {
		t.Errorf("expected total=9 total_pages=3, got total=%v total_pages=%v", body["total"], body["total_pages"])
	}
	if len(body["items"].([]any)) != 4 {
		t.Errorf("expected 4 items on page 2, got %d", len(body["items"].([]any)))
	}

	// A page past the end is empty, not an error.
	resp = doRequest(t, http.MethodGet, "/api/v1/leads?page=50&page_size=4", nil)
	mustStatus(t, resp, http.StatusOK)
	body = readJSON(t, resp)
	if len(body["items"].([]any)) != 0 {
		t.Errorf("expected empty page past the end")
	}
}

func TestSearchAndSort(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodGet, "/api/v1/leads?search=frost", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	// Matches Aria Frost by name and Zara West by email domain.
	if body["total"].(float64) != 2 {
		t.Errorf("expected 2 matches for 'frost', got %v", body["total"])
	}

	resp = doRequest(t, http.MethodGet, "/api/v1/leads?sort_by=name&sort_desc=true&page_size=1", nil)
	mustStatus(t, resp, http.StatusOK)
	body = readJSON(t, resp)
	first := body["items"].([]any)[0].(map[string]any)
	if first["name"] != "Zara West" {
		t.Errorf("expected Zara West first in descending name order, got %v", first["name"])
	}
}

func TestDefaultOrderIsNewestFirst(t *testing.T) {
	resetServer(t)

	resp := doRequest(t, http.MethodGet, "/api/v1/leads", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	items := body["items"].([]any)
	if len(items) == 0 {
		t.Fatal("expected seed leads")
	}
	first := items[0].(map[string]any)
	if first["name"] != "Iris Cole" {
		t.Errorf("expected the newest seed lead first by default, got %v", first["name"])
	}

	resp = doRequest(t, http.MethodGet, "/api/v1/leads?sort_desc=false", nil)
	mustStatus(t, resp, http.StatusOK)
	body = readJSON(t, resp)
	first = body["items"].([]any)[0].(map[string]any)
	if first["name"] != "Felix Gray" {
		t.Errorf("expected the oldest seed lead first ascending, got %v", first["name"])
	}
}

func TestStageRegressionKeepsLedger(t *testing.T) {
	resetServer(t)

	created := createTestLead(t, "Regression Lead", uniqueEmail("regression"))
	id := leadID(t, created)

	for _, stage := range []string{"Meeting Scheduled", "Initial Contact"} {
		resp := doRequest(t, http.MethodPut, "/api/v1/leads/"+id, map[string]any{
			"current_stage": stage,
		})
		mustStatus(t, resp, http.StatusOK)
		_ = readJSON(t, resp)
	}

	resp := doRequest(t, http.MethodGet, "/api/v1/leads/"+id, nil)
	mustStatus(t, resp, http.StatusOK)
	lead := readJSON(t, resp)

	// Moving backward appends; nothing is dropped.
	history := lead["stage_history"].([]any)
	if len(history) != 3 {
		t.Fatalf("expected 3 ledger entries after a regression, got %d", len(history))
	}
	last := history[2].(map[string]any)
	if last["from_stage"] != "Meeting Scheduled" || last["to_stage"] != "Initial Contact" {
		t.Errorf("unexpected regression entry: %v", last)
	}
	if lead["current_stage"] != "Initial Contact" {
		t.Errorf("expected current stage Initial Contact, got %v", lead["current_stage"])
	}
}

func TestStagesEndpointListsPipeline(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/v1/stages", nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)

	items := body["items"].([]any)
	if len(items) != 6 {
		t.Fatalf("expected 6 pipeline stages, got %d", len(items))
	}
	want := []string{"New Lead", "Initial Contact", "Meeting Scheduled", "Proposal Sent", "Negotiation", "Closed Won"}
	for i, item := range items {
		stage := item.(map[string]any)
		if stage["name"] != want[i] {
			t.Errorf("stage %d: expected %q, got %v", i, want[i], stage["name"])
		}
	}
	lastProgress := items[5].(map[string]any)["progress"].(float64)
	if lastProgress != 100 {
		t.Errorf("expected 100%% progress for the final stage, got %v", lastProgress)
	}
}
