package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

var (
	// ErrNoSeeds is returned when discovery yields no candidates
	ErrNoSeeds = errors.New("no seeds configured")
	// ErrNoSeedReachable is returned when every candidate refused or failed the join
	ErrNoSeedReachable = errors.New("no seed reachable")
)

// Bootstrap joins the chat through the first candidate that accepts.
//
// Candidates that are this node or fail to answer are skipped. Joining stops
// early if the node is already in a chat or has been closed.
func Bootstrap(ctx context.Context, joiner Joiner, d Discovery, logger *zap.Logger) (meshnode.Endpoint, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	seeds, err := d.FindPeers(ctx)
	if err != nil {
		return meshnode.Endpoint{}, fmt.Errorf("discover seeds: %w", err)
	}
	if len(seeds) == 0 {
		return meshnode.Endpoint{}, ErrNoSeeds
	}

	var attempts []error
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return meshnode.Endpoint{}, err
		}

		err := joiner.Connect(ctx, seed)
		switch {
		case err == nil:
			logger.Info("joined chat through seed", zap.Stringer("seed", seed))
			return seed, nil
		case errors.Is(err, meshnode.ErrAlreadyInChat), errors.Is(err, meshnode.ErrNodeClosed):
			return meshnode.Endpoint{}, err
		default:
			logger.Warn("seed join failed", zap.Stringer("seed", seed), zap.Error(err))
			attempts = append(attempts, err)
		}
	}

	return meshnode.Endpoint{}, fmt.Errorf("%w: %w", ErrNoSeedReachable, errors.Join(attempts...))
}
