package discovery

import (
	"context"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// Discovery defines the interface for finding chat members to join through
type Discovery interface {
	// FindPeers returns candidate members in preference order
	FindPeers(ctx context.Context) ([]meshnode.Endpoint, error)
}

// Joiner is the part of a mesh node Bootstrap needs
type Joiner interface {
	Connect(ctx context.Context, target meshnode.Endpoint) error
}
