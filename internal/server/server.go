// Package server exposes the chat engine over a websocket session protocol
// with lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tailedflox9-maker/studychat/internal/llm"
	"github.com/tailedflox9-maker/studychat/internal/metrics"
	"github.com/tailedflox9-maker/studychat/internal/settings"
	"github.com/tailedflox9-maker/studychat/internal/store"
)

// Dependencies carries the shared collaborators each session is built from.
type Dependencies struct {
	Store     *store.Store
	Generator *llm.Generator
	Settings  *settings.Manager
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Server owns the HTTP listener and upgrades /ws connections into engine
// sessions.
type Server struct {
	deps Dependencies
	http *http.Server
}

// New creates a server listening on the given port.
func New(port string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)

	s.http = &http.Server{
		Addr:        ":" + port,
		Handler:     LoggingMiddleware(deps.Logger)(mux),
		ReadTimeout: 5 * time.Second,
		// Websocket sessions outlive any sane write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
