package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server is the admin read-only inspection HTTP server.
type Server struct {
	view    *View
	metrics *Metrics
	srv     *http.Server
}

// New creates an admin Server mounted at listenAddr with routes under
// /admin/. Call Start to begin listening.
func New(view *View, metrics *Metrics, listenAddr string) *Server {
	s := &Server{view: view, metrics: metrics}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/health", s.handleHealth)
	mux.HandleFunc("GET /admin/strategy", s.handleStrategy)
	mux.HandleFunc("GET /admin/stats", s.handleStats)
	mux.HandleFunc("GET /admin/discovery", s.handleDiscovery)
	if metrics != nil {
		mux.Handle("GET /admin/metrics", metrics.Handler())
	}

	s.srv = &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening in a background goroutine. It returns immediately.
func (s *Server) Start() {
	go func() {
		slog.Info("admin server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the admin server within the given context
// deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the server's route table, useful for testing against an
// httptest.Server without binding the configured listen address.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, s.view.Health())
}

func (s *Server) handleStrategy(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{"strategy": s.view.Strategy()})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, s.view.Stats())
}

func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, s.view.Discovery())
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
