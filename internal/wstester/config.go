package wstester

import (
	"maps"
	"slices"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout           = 5 * time.Second
	DefaultReconnectAttempts = 3
	DefaultReconnectInterval = time.Second
	DefaultPingInterval      = 60 * time.Second
	DefaultMaxMessageSize    = 1024 * 1024
	DefaultMaxMessages       = 1000
)

// Config holds the connection settings for a Tester.
type Config struct {
	// URL is the ws:// or wss:// endpoint. Connect overwrites it.
	URL string

	// Protocols are the requested sub-protocols.
	Protocols []string

	// Headers are sent with the opening handshake.
	Headers map[string]string

	// Timeout bounds each open attempt.
	Timeout time.Duration

	// ReconnectAttempts limits automatic retries after an unexpected close.
	// 0 disables reconnection.
	ReconnectAttempts int

	// ReconnectInterval is the delay before each retry.
	ReconnectInterval time.Duration

	// PingInterval is the keep-alive ping period. 0 disables keep-alive.
	PingInterval time.Duration

	// MaxMessageSize is the largest payload Send accepts, in bytes.
	MaxMessageSize int

	// MaxMessages caps the message log.
	MaxMessages int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		ReconnectAttempts: DefaultReconnectAttempts,
		ReconnectInterval: DefaultReconnectInterval,
		PingInterval:      DefaultPingInterval,
		MaxMessageSize:    DefaultMaxMessageSize,
		MaxMessages:       DefaultMaxMessages,
	}
}

// applyDefaults fills zero values that would make the engine unusable.
// ReconnectAttempts and PingInterval keep their zero meaning.
func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.ReconnectAttempts < 0 {
		c.ReconnectAttempts = 0
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
}

func (c Config) clone() Config {
	c.Protocols = slices.Clone(c.Protocols)
	c.Headers = maps.Clone(c.Headers)
	return c
}
