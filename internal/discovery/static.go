package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// ErrInvalidSeed is returned for a seed that is not host:port or cannot be resolved
var ErrInvalidSeed = errors.New("invalid seed")

// StaticDiscovery implements Discovery using a static list of seed nodes
type StaticDiscovery struct {
	seedNodes []string
	resolver  *net.Resolver
}

// NewStaticDiscovery creates a new static discovery service with the given seed nodes.
// Seeds are "ip:port" or "hostname:port".
func NewStaticDiscovery(seedNodes []string) *StaticDiscovery {
	return &StaticDiscovery{
		seedNodes: seedNodes,
		resolver:  net.DefaultResolver,
	}
}

// FindPeers returns the seed endpoints in configured order.
// Hostnames resolve to their first address; blank entries are skipped.
func (s *StaticDiscovery) FindPeers(ctx context.Context) ([]meshnode.Endpoint, error) {
	peers := make([]meshnode.Endpoint, 0, len(s.seedNodes))
	for _, seed := range s.seedNodes {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}

		ep, err := s.resolve(ctx, seed)
		if err != nil {
			return nil, err
		}
		peers = append(peers, ep)
	}
	return peers, nil
}

func (s *StaticDiscovery) resolve(ctx context.Context, seed string) (meshnode.Endpoint, error) {
	if ep, err := meshnode.ParseEndpoint(seed); err == nil {
		return ep, nil
	}

	host, portStr, err := net.SplitHostPort(seed)
	if err != nil {
		return meshnode.Endpoint{}, fmt.Errorf("%w %q: %v", ErrInvalidSeed, seed, err)
	}
	port, err := meshnode.ParsePort(portStr)
	if err != nil {
		return meshnode.Endpoint{}, fmt.Errorf("%w %q: %v", ErrInvalidSeed, seed, err)
	}

	addrs, err := s.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		return meshnode.Endpoint{}, fmt.Errorf("%w %q: cannot resolve host: %v", ErrInvalidSeed, seed, err)
	}

	// Prefer IPv4, matching the default tcp4 network
	chosen := addrs[0]
	for _, addr := range addrs {
		if addr.Unmap().Is4() {
			chosen = addr
			break
		}
	}
	return meshnode.NewEndpoint(chosen, port), nil
}

// Verify that StaticDiscovery implements the Discovery interface at compile time
var _ Discovery = (*StaticDiscovery)(nil)
