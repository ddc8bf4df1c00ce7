// Package leads implements the lead CRUD endpoints, the CSV export and the
// pipeline stage listing.
package leads

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/johnwards/leadtrack/internal/api"
	"github.com/johnwards/leadtrack/internal/domain"
	"github.com/johnwards/leadtrack/internal/export"
	"github.com/johnwards/leadtrack/internal/store"
	"github.com/johnwards/leadtrack/internal/ws"
)

// Handler handles lead HTTP requests. Mutations are broadcast to the hub
// tagged with the caller's session id so other clients can refresh.
type Handler struct {
	store store.LeadStore
	hub   *ws.Hub
}

// sessionID identifies the mutating client for echo suppression. Empty when
// the client did not send one.
func sessionID(r *http.Request) string {
	return r.Header.Get("X-Session-Id")
}

// List handles GET /api/v1/leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	page, err := h.store.List(r.Context(), opts)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.PaginatedResponse{
		Items:      page.Items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

// Create handles POST /api/v1/leads.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.LeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return
	}

	lead, err := h.store.Create(r.Context(), input)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.hub.Broadcast(ws.EventLeadCreated, lead,
		fmt.Sprintf("%s was added", lead.Name), sessionID(r))

	api.WriteJSON(w, http.StatusCreated, lead)
}

// Get handles GET /api/v1/leads/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, lead)
}

// Update handles PUT /api/v1/leads/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body domain.UpdateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewValidationError("Invalid input JSON", api.CorrelationID(r.Context()), nil))
		return
	}

	lead, err := h.store.Update(r.Context(), r.PathValue("id"), body)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.hub.Broadcast(ws.EventLeadUpdated, lead,
		fmt.Sprintf("%s was updated", lead.Name), sessionID(r))

	api.WriteJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/v1/leads/{id}. The deleted record travels in
// the push event so receivers never need to re-fetch something that is gone.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	lead, err := h.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	h.hub.Broadcast(ws.EventLeadDeleted, lead,
		fmt.Sprintf("%s was deleted", lead.Name), sessionID(r))

	api.WriteJSON(w, http.StatusOK, lead)
}

// Export handles GET /api/v1/leads/export. The export always covers the full
// filtered set regardless of pagination.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	leads, err := h.store.ListAll(r.Context(), opts)
	if err != nil {
		api.WriteStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	if err := export.WriteCSV(w, leads); err != nil {
		// The CSV headers and part of the body are already on the wire, so
		// an error envelope would corrupt the download. Log and bail.
		slog.Error("csv export failed", "error", err,
			"correlation_id", api.CorrelationID(r.Context()))
	}
}

// stageInfo describes one pipeline stage for GET /api/v1/stages.
type stageInfo struct {
	Name     domain.Stage `json:"name"`
	Index    int          `json:"index"`
	Progress int          `json:"progress"`
}

// Stages handles GET /api/v1/stages. The pipeline is fixed; clients render
// progress bars from the returned percentages.
func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	items := make([]stageInfo, len(domain.Stages))
	for i, s := range domain.Stages {
		items[i] = stageInfo{Name: s, Index: i, Progress: domain.StageProgress(s)}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseListOpts(r *http.Request) store.ListOpts {
	q := r.URL.Query()

	opts := store.ListOpts{
		Page:     1,
		PageSize: 10,
		SortBy:   q.Get("sort_by"),
		// Newest first unless the caller explicitly asks for ascending.
		SortDesc: q.Get("sort_desc") != "false",
		Search:   q.Get("search"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		opts.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		opts.PageSize = v
	}
	return opts
}
