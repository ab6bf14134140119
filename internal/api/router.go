package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/btgateway/internal/gateway"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/workers", s.handleListWorkers)
		r.Post("/update", s.handleUpdateAll)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{name}/history", s.handleGetDeviceHistory)
		})
	})

	return r
}

// handleHealth returns the gateway health. A stopping gateway answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	msg := s.health.Current()
	status := http.StatusOK
	if msg.Status == gateway.HealthStopping {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, msg)
}

// handleListWorkers returns the scheduling status of every worker.
func (s *Server) handleListWorkers(w http.ResponseWriter, _ *http.Request) {
	workers := s.gateway.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"workers": workers,
		"count":   len(workers),
	})
}

// handleUpdateAll requests an immediate cycle of every worker.
func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	s.gateway.UpdateAll()
	s.logger.Info("force update requested", "source", "api", "request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
