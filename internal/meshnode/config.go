package meshnode

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/internal/peerlink"
)

var (
	// ErrInvalidListenAddress is returned when listen address is empty or malformed
	ErrInvalidListenAddress = errors.New("listen address must be host:port")
	// ErrInvalidAdvertiseAddress is returned when the advertise address is not an IP
	ErrInvalidAdvertiseAddress = errors.New("advertise address must be an IP address")
)

// Config represents configuration for a TCPMeshNode
type Config struct {
	// ListenAddress is the address this node accepts peers on.
	// Format: "host:port" (e.g., ":5000", "127.0.0.1:0")
	ListenAddress string

	// AdvertiseAddress is the IP used for this node's own endpoint when the
	// listen host is unspecified. Defaults to the loopback address.
	AdvertiseAddress string

	// PeerLink configuration for every peer connection (dialed or accepted)
	PeerLinkConfig *peerlink.Config

	// Logger receives structured logs; defaults to a no-op logger
	Logger *zap.Logger
}

// NewConfig creates a new node configuration with safe defaults
func NewConfig(listenAddress string) *Config {
	return &Config{
		ListenAddress:  listenAddress,
		PeerLinkConfig: nil,
		Logger:         nil,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return ErrInvalidListenAddress
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidListenAddress, err)
	}

	if c.AdvertiseAddress != "" {
		if _, err := netip.ParseAddr(c.AdvertiseAddress); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAdvertiseAddress, err)
		}
	}

	// Validate PeerLink config if provided
	if c.PeerLinkConfig != nil {
		if err := c.PeerLinkConfig.Validate(); err != nil {
			return fmt.Errorf("invalid PeerLink config: %w", err)
		}
	}

	return nil
}

// WithAdvertiseAddress sets the IP used for this node's own endpoint
func (c *Config) WithAdvertiseAddress(addr string) *Config {
	c.AdvertiseAddress = addr
	return c
}

// WithPeerLinkConfig sets the PeerLink configuration
func (c *Config) WithPeerLinkConfig(config *peerlink.Config) *Config {
	c.PeerLinkConfig = config
	return c
}

// WithLogger sets the structured logger
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.Logger = logger
	return c
}
