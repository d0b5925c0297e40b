package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = "5000"
	DefaultMaxMessageSize  = 512
	DefaultRateLimitBurst  = 120
	DefaultRateLimitRefill = time.Second
	DefaultSendBuffer      = 256
	DefaultSlowPeerPolicy  = SlowPeerDrop
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = LogFormatConsole

	allOrigins        = "*"
	defaultRelayEvent = "paint"
)

// Default returns a Config populated with every default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{allOrigins}
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = DefaultRateLimitRefill
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.SlowPeerPolicy == "" {
		c.SlowPeerPolicy = DefaultSlowPeerPolicy
	}
	if len(c.RelayEvents) == 0 {
		c.RelayEvents = []string{defaultRelayEvent}
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
