// Package server wires HTTP handlers into a chi router for the relay.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/collablearn/relay/internal/auth"
)

// SetupRoutes configures and returns the relay's HTTP router: health check,
// WebSocket endpoint, the internal eviction endpoint, and (when a handler is
// provided) the metrics scrape endpoint.
func SetupRoutes(hub *Hub, verifier auth.Verifier, oracle MembershipOracle, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthHandler)
	r.Get("/ws", NewWebSocketHandler(hub, verifier, oracle))
	r.Route("/internal", func(r chi.Router) {
		r.Post("/groups/{groupID}/members/{memberID}/evict", NewEvictionHandler(hub))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}
