package api

import (
	"errors"
	"time"
)

// Sentinel errors for configuration validation
var (
	// ErrInvalidTimeout is returned when a timeout value is invalid (negative).
	ErrInvalidTimeout = errors.New("invalid timeout: must be >= 0")
	// ErrInvalidBuffer is returned when the event buffer is not positive.
	ErrInvalidBuffer = errors.New("invalid event buffer: must be > 0")
)

// Config holds API-level configuration.
type Config struct {
	// HandlerTimeout bounds a handler when the request context carries no
	// deadline. Zero disables it.
	HandlerTimeout time.Duration

	// EventBuffer is the per-client queue of pending websocket events.
	// A client that falls this far behind is disconnected.
	EventBuffer int

	// PingInterval is how often idle websocket clients are pinged.
	PingInterval time.Duration

	// WriteWait bounds a single websocket write.
	WriteWait time.Duration
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 30 * time.Second,
		EventBuffer:    64,
		PingInterval:   30 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.HandlerTimeout < 0 || c.PingInterval < 0 || c.WriteWait < 0 {
		return ErrInvalidTimeout
	}
	if c.EventBuffer <= 0 {
		return ErrInvalidBuffer
	}
	return nil
}
