package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/storage"
)

// healthCheckTimeout bounds each component check made by /health.
const healthCheckTimeout = 3 * time.Second

// defaultBasePath is used when the config leaves base_path empty.
const defaultBasePath = "/functions/v1"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	if s.objects != nil {
		r.Handle(storage.PublicPathPrefix+"*", s.objects)
	}

	router := function.NewRouter(s.logger)
	deps := function.EndpointDeps{
		Authenticator: s.authn,
		Router:        router,
		Logger:        s.logger,
		Observer:      s.observe,
	}

	r.Route(s.basePath(), func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}
		for _, fn := range s.functions {
			endpoint := function.NewEndpoint(fn.Name, fn.API, fn.Web, deps)
			r.Handle("/"+fn.Name, endpoint)
			r.Handle("/"+fn.Name+"/*", endpoint)
		}
	})

	return r
}

func (s *Server) basePath() string {
	p := strings.TrimSuffix(s.cfg.BasePath, "/")
	if p == "" {
		return defaultBasePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// handleNotFound answers unknown paths with the function error envelope.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, function.NotFound("No function at "+r.URL.Path))
}

// handleHealth reports the server and every registered component.
// Any failing component turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	healthy := true
	for name, hc := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			s.logger.Warn("health check failed", "component", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"checks":         checks,
	})
}
