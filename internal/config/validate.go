package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	port := c.Addr()[strings.LastIndex(c.Addr(), ":")+1:]
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %q", c.Port)
	}

	if c.MaxMessageSize < 1 {
		return errors.New("max_message_size must be >= 1")
	}
	if c.RateLimit.Burst < 1 {
		return errors.New("rate_limit.burst must be >= 1")
	}
	if c.RateLimit.RefillInterval <= 0 {
		return errors.New("rate_limit.refill_interval must be positive")
	}
	if c.SendBuffer < 1 {
		return errors.New("send_buffer must be >= 1")
	}

	switch c.SlowPeerPolicy {
	case SlowPeerDrop, SlowPeerDisconnect:
	default:
		return fmt.Errorf("slow_peer_policy must be %q or %q, got %q", SlowPeerDrop, SlowPeerDisconnect, c.SlowPeerPolicy)
	}

	if len(c.RelayEvents) == 0 {
		return errors.New("relay_events must name at least one event")
	}
	for _, e := range c.RelayEvents {
		if e == "" {
			return errors.New("relay_events must not contain empty names")
		}
	}

	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", LogFormatConsole, LogFormatJSON, c.Log.Format)
	}

	return nil
}
