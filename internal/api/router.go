package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database ping in the health endpoint.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/models", s.handleListModels)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/entities", s.handleListEntities)
				r.Post("/entities/{key}/actions", s.handleEntityAction)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// SessionHealth is one device's entry in the health response.
type SessionHealth struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// handleHealth reports database, InfluxDB and session health.
//
// Only a failing database makes the response 503. A telemetry outage or a
// disconnected device marks the service degraded while it keeps serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	degraded := false
	body := map[string]any{
		"version": s.version,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status = http.StatusServiceUnavailable
			degraded = true
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}

	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			s.logger.Warn("influxdb health check failed", "error", err)
			degraded = true
			body["influxdb"] = "unavailable"
		} else {
			body["influxdb"] = "ok"
		}
	}

	sessions := make(map[string]SessionHealth)
	for _, d := range s.manager.Devices() {
		h := SessionHealth{State: d.Session.State().String()}
		if err := d.Session.HealthCheck(ctx); err != nil {
			h.Error = err.Error()
			degraded = true
		}
		sessions[d.ID()] = h
	}
	body["sessions"] = sessions

	body["status"] = "ok"
	if degraded {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
