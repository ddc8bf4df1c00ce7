// Package admin serves the test-support API at /_leadtrack/.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/johnwards/leadtrack/internal/api"
	"github.com/johnwards/leadtrack/internal/seed"
)

// Handler serves the admin API.
type Handler struct {
	db *sql.DB
}

// Reset drops all lead data and re-runs the seeds.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := ResetData(r.Context(), h.db); err != nil {
		api.WriteError(w, http.StatusInternalServerError,
			api.NewInternalError(fmt.Sprintf("failed to reset: %s", err), api.CorrelationID(r.Context())))
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeedData runs seed data without dropping existing rows first.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	if err := seed.Seed(r.Context(), h.db); err != nil {
		api.WriteError(w, http.StatusInternalServerError,
			api.NewInternalError(fmt.Sprintf("failed to seed: %s", err), api.CorrelationID(r.Context())))
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetData clears the leads table and re-seeds. Exported for reuse by tests.
func ResetData(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM leads"); err != nil {
		return fmt.Errorf("clear leads: %w", err)
	}
	return seed.Seed(ctx, db)
}
