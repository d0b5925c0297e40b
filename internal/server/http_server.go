// Package server constructs and starts the relay's HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTP timeouts. They cover the upgrade request only; once hijacked, a
// socket is governed by the pump deadlines in client.go.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// CreateServer returns an http.Server for handler on addr.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// StartServer listens and serves until the server is shut down. A normal
// shutdown is not reported as an error.
func StartServer(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting requests and waits up to timeout for
// in-flight ones. Hijacked WebSocket connections are not tracked by
// http.Server; the hub closes those.
func ShutdownServer(log zerolog.Logger, server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Dur("timeout", timeout).Msg("shutting down http server")
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}
