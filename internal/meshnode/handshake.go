package meshnode

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	meshnodepkg "github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// noPeers is the reply of a member that knows no other peers
const noPeers = "NO"

// formatPort renders the listening port a joiner announces
func formatPort(port uint16) string {
	return strconv.FormatUint(uint64(port), 10)
}

// formatPeerList renders the join reply for the given peer set
func formatPeerList(peers []meshnodepkg.Endpoint) string {
	if len(peers) == 0 {
		return noPeers
	}

	sorted := slices.Clone(peers)
	slices.SortFunc(sorted, meshnodepkg.Endpoint.Compare)

	parts := make([]string, len(sorted))
	for i, ep := range sorted {
		parts[i] = ep.String()
	}
	return strings.Join(parts, " ")
}

// parsePeerList decodes a join reply. "NO" yields an empty list; anything that is
// not a whitespace-separated list of endpoints is a handshake failure.
func parsePeerList(reply string) ([]meshnodepkg.Endpoint, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == noPeers {
		return nil, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty reply", meshnodepkg.ErrHandshakeFailure)
	}

	peers := make([]meshnodepkg.Endpoint, 0, len(fields))
	for _, field := range fields {
		ep, err := meshnodepkg.ParseEndpoint(field)
		if err != nil {
			return nil, fmt.Errorf("%w: reply %q: %v", meshnodepkg.ErrHandshakeFailure, reply, err)
		}
		peers = append(peers, ep)
	}
	return peers, nil
}
