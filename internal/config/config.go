// Package config defines the runtime configuration of the paint relay and
// loads it from defaults, an optional YAML file, a .env file, and the
// process environment, in that order of precedence.
package config

import (
	"slices"
	"strings"
	"time"
)

// Slow peer policies.
const (
	SlowPeerDrop       = "drop"
	SlowPeerDisconnect = "disconnect"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the root configuration.
type Config struct {
	Port            string          `yaml:"port"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	SendBuffer      int             `yaml:"send_buffer"`
	SlowPeerPolicy  string          `yaml:"slow_peer_policy"`
	RelayEvents     []string        `yaml:"relay_events"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Log             LogConfig       `yaml:"log"`
}

// RateLimitConfig bounds how many inbound events one connection may send.
// Burst events are allowed per RefillInterval.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Addr returns the listen address for Port, accepting both "5000" and ":5000".
func (c *Config) Addr() string {
	if c.Port == "" || strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// AllowsEvent reports whether event is relayed.
func (c *Config) AllowsEvent(event string) bool {
	return slices.Contains(c.RelayEvents, event)
}
