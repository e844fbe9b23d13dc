package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/displays", func(r chi.Router) {
			r.Get("/", s.handleListDisplays)
			r.Post("/discover", s.handleDiscover)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDisplay)
				r.Get("/brightness", s.handleGetBrightness)
				r.Put("/brightness", s.handleSetBrightness)
				r.Post("/adjust", s.handleAdjustDisplay)
			})
		})

		// Aggregate over ?device=<regex>
		r.Get("/brightness", s.handleGetAggregate)
		r.Put("/brightness", s.handleSetAggregate)
		r.Post("/brightness/adjust", s.handleAdjustAggregate)

		r.Get("/config", s.handleGetConfig)
		r.Post("/config/reload", s.handleReloadConfig)
		r.Get("/reloads", s.handleListReloads)

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"displays": len(s.engine.ListDisplays()),
		"clients":  s.hub.ClientCount(),
	})
}

// wsPath is the WebSocket route relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
