// Package server implements the HTTP and WebSocket surface of the paint
// relay and ties the hub, relay, and registry together.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/metrics"
	"github.com/Tyrowin/paintrelay/internal/relay"
)

// Server owns one relay instance: its registry, hub, metrics and HTTP
// handlers. Nothing is shared between Server values.
type Server struct {
	cfg      *config.Config
	log      zerolog.Logger
	gatherer prometheus.Gatherer
	metrics  *metrics.Collector
	registry *relay.Registry
	relay    *relay.Relay
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server and everything it creates.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithRegistry uses reg for the relay's connection registry.
func WithRegistry(reg *relay.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New builds a Server from cfg. The hub is not started; call Run, or Start
// when serving through another listener.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     zerolog.Nop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = relay.NewRegistry()
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.gatherer = promRegistry
	s.metrics = metrics.NewCollector(promRegistry)

	s.relay = relay.New(s.registry,
		relay.WithLogger(s.log.With().Str("component", "relay").Logger()),
		relay.WithMetrics(s.metrics),
	)
	s.hub = NewHub(s.relay, s.log.With().Str("component", "hub").Logger(), s.metrics)
	s.origins = newOriginPolicy(cfg.AllowedOrigins, s.log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the server's connection registry.
func (s *Server) Registry() *relay.Registry {
	return s.registry
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// Start runs the hub in the background.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info().Msg("hub started and ready to manage websocket connections")
}

// Shutdown stops the hub and closes every client.
func (s *Server) Shutdown() error {
	return s.hub.Shutdown(s.cfg.ShutdownTimeout)
}

// Run serves HTTP on the configured port until ctx is cancelled or the
// listener fails, then shuts the HTTP server and the hub down.
func (s *Server) Run(ctx context.Context) error {
	httpServer := CreateServer(s.cfg.Addr(), s.Routes())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run()
		return nil
	})

	g.Go(func() error {
		s.log.Info().Str("addr", httpServer.Addr).Msg("server listening")
		return StartServer(httpServer)
	})

	g.Go(func() error {
		<-gctx.Done()
		return errors.Join(
			ShutdownServer(s.log, httpServer, s.cfg.ShutdownTimeout),
			s.hub.Shutdown(s.cfg.ShutdownTimeout),
		)
	})

	return g.Wait()
}
