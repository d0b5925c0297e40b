// Package server wires HTTP handlers into a chi router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/paintrelay/internal/logging"
)

// Routes returns the relay's HTTP handler: health check, stats, metrics, and
// the WebSocket endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(s.log.With().Str("component", "http").Logger()))
	r.Use(middleware.Recoverer)

	r.HandleFunc("/", HealthHandler)
	r.HandleFunc("/ws", s.WebSocketHandler)
	r.Get("/stats", s.StatsHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}
