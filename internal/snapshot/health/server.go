// Package health exposes liveness and metrics endpoints for the snapshot
// service.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	checkers map[string]Checker
	server   *http.Server
}

// NewServer creates a health server on the given port. Checkers are named
// dependency probes (database, cache) run on every /health request.
func NewServer(port int, checkers map[string]Checker) *Server {
	mux := http.NewServeMux()
	s := &Server{
		checkers: checkers,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := make(map[string]string, len(s.checkers))

	for name, check := range s.checkers {
		if err := check(r.Context()); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
