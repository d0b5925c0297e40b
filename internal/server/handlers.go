// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and relay statistics.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Stats is the body of GET /stats.
type Stats struct {
	Connections   int     `json:"connections"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// WebSocketHandler upgrades GET requests to WebSocket, creates a Client for
// the session and hands it to the hub, which registers it and starts its
// pumps. Outbound frames may carry several newline-separated events.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.hub.Register(client) {
		s.log.Warn().Str("addr", r.RemoteAddr).Msg("hub stopped; rejecting connection")
		client.closeConnection()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Paint relay is running!")
}

// StatsHandler reports the number of live connections and the uptime.
func (s *Server) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	stats := Stats{
		Connections:   s.registry.Size(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.log.Warn().Err(err).Msg("error writing stats response")
	}
}
