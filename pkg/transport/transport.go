// Package transport carries protocol messages between the browser and a
// wizard session over WebSocket.
package transport

import (
	"errors"
	"time"
)

// Transport errors.
var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrConnectionClosed = errors.New("connection closed")
)

// Config holds WebSocket transport configuration.
type Config struct {
	// AllowedOrigins lists extra origins allowed to connect. Same-origin
	// connections are always allowed; "*" allows any origin.
	AllowedOrigins []string

	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool

	// IdleTimeout closes connections that send nothing for this long.
	IdleTimeout time.Duration

	// WriteTimeout is the maximum time to wait for a write.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings the client. Zero disables.
	PingInterval time.Duration

	// MaxMessageSize is the maximum inbound message size in bytes.
	MaxMessageSize int64
}

// DefaultConfig returns secure defaults: same-origin only.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    10 * time.Minute,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	return c
}
