package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/johnwards/leadtrack/internal/api"
	"github.com/johnwards/leadtrack/internal/api/admin"
	"github.com/johnwards/leadtrack/internal/api/leads"
	"github.com/johnwards/leadtrack/internal/config"
	"github.com/johnwards/leadtrack/internal/database"
	"github.com/johnwards/leadtrack/internal/seed"
	"github.com/johnwards/leadtrack/internal/store"
	"github.com/johnwards/leadtrack/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := seed.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	leadStore := store.NewSQLiteLeadStore(db)
	hub := ws.NewHub()

	mux := http.NewServeMux()

	leads.RegisterRoutes(mux, leadStore, hub)

	// Test-support API
	admin.RegisterRoutes(mux, db)

	// Catch-all: return 404 in the standard envelope.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			api.CorrelationID(r.Context()),
		))
	})

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.CORS(),
		api.Auth(cfg.AuthToken),
		api.JSONContentType(),
		api.Logging(),
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		hub.CloseAll()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting leadtrack server", "addr", cfg.Addr, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
