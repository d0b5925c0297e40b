// Package logging builds the zerolog logger shared by the relay and the
// HTTP middleware that writes one access line per request.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/paintrelay/internal/config"
)

// New returns a logger for app configured from cfg and installs it as the
// package-level zerolog logger.
func New(app string, cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(app, cfg, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(app string, cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if cfg.Format != config.LogFormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
