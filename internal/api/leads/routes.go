package leads

import (
	"net/http"

	"github.com/johnwards/leadtrack/internal/store"
	"github.com/johnwards/leadtrack/internal/ws"
)

// RegisterRoutes adds all lead endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s store.LeadStore, hub *ws.Hub) {
	h := &Handler{store: s, hub: hub}

	mux.HandleFunc("GET /api/v1/leads", h.List)
	mux.HandleFunc("POST /api/v1/leads", h.Create)
	mux.HandleFunc("GET /api/v1/leads/export", h.Export)
	mux.HandleFunc("GET /api/v1/leads/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/leads/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/leads/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/stages", h.Stages)
	mux.Handle("GET /api/v1/ws", hub)
}
