package peerlink

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidNetwork is returned when the network is not a TCP stream network
	ErrInvalidNetwork = errors.New("network must be one of tcp, tcp4, tcp6")
	// ErrNegativeBufferSize is returned when the read buffer size is negative
	ErrNegativeBufferSize = errors.New("read buffer size cannot be negative")
	// ErrNegativeDialTimeout is returned when the dial timeout is negative
	ErrNegativeDialTimeout = errors.New("dial timeout cannot be negative")
)

// Config holds configuration for TCP peer connections
type Config struct {
	// Network is the stream network used for dialing ("tcp", "tcp4" or "tcp6")
	Network string

	// ReadBufferSize is the chunk size used by Receive for each read
	ReadBufferSize int

	// DialTimeout bounds connection establishment. Zero means no timeout,
	// only the caller's context applies.
	DialTimeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Network {
	case "", "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, c.Network)
	}
	if c.ReadBufferSize < 0 {
		return ErrNegativeBufferSize
	}
	if c.DialTimeout < 0 {
		return ErrNegativeDialTimeout
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.Network == "" {
		c.Network = "tcp4"
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 4096
	}
}
