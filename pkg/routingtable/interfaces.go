package routingtable

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// MatchAll is the pattern that matches every event kind
const MatchAll = "*"

// ErrInvalidPattern is returned for a pattern that is neither "*" nor an event kind name
var ErrInvalidPattern = errors.New("invalid subscription pattern")

// Subscriber represents a local consumer of mesh events
type Subscriber interface {
	// ID returns unique identifier for this subscriber
	ID() string

	// Type returns the type of subscriber
	Type() SubscriberType

	// Deliver hands an event to the subscriber without blocking.
	// It returns false when the event was dropped.
	Deliver(event meshnode.Event) bool
}

// SubscriberType represents different types of subscribers
type SubscriberType int

const (
	// LocalClient represents an in-process consumer
	LocalClient SubscriberType = iota

	// HTTPStream represents a server-sent events client
	HTTPStream

	// GRPCStream represents a gRPC streaming client
	GRPCStream
)

func (t SubscriberType) String() string {
	switch t {
	case LocalClient:
		return "local"
	case HTTPStream:
		return "http"
	case GRPCStream:
		return "grpc"
	default:
		return "unknown"
	}
}

// Subscription represents a kind pattern bound to a subscriber
type Subscription struct {
	// Pattern is "*" or an event kind name
	Pattern string

	// Subscriber is the entity that wants to receive matching events
	Subscriber Subscriber
}

// RoutingTable manages pattern-to-subscriber mappings for local event delivery.
type RoutingTable interface {
	io.Closer
	meshnode.Observer

	// Subscribe adds a subscription for a pattern to a subscriber.
	Subscribe(ctx context.Context, pattern string, subscriber Subscriber) error

	// Unsubscribe removes a subscription for a pattern from a subscriber.
	Unsubscribe(ctx context.Context, pattern string, subscriberID string) error

	// UnsubscribeAll removes every subscription of a subscriber.
	UnsubscribeAll(ctx context.Context, subscriberID string) error

	// GetSubscribers returns all subscribers interested in the given event kind.
	GetSubscribers(ctx context.Context, kind meshnode.EventKind) ([]Subscriber, error)

	// GetAllSubscriptions returns all current subscriptions.
	GetAllSubscriptions(ctx context.Context) ([]Subscription, error)

	// Dispatch delivers an event to every matching subscriber and returns the number
	// of subscribers that accepted it.
	Dispatch(event meshnode.Event) int

	// GetSubscriberCount returns the number of distinct subscribers.
	GetSubscriberCount(ctx context.Context) (int, error)
}

// NormalizePattern validates a pattern and returns its canonical form.
// The empty pattern is treated as "*".
func NormalizePattern(pattern string) (string, error) {
	if pattern == "" || pattern == MatchAll {
		return MatchAll, nil
	}
	kind, err := meshnode.ParseEventKind(pattern)
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrInvalidPattern, pattern)
	}
	return kind.String(), nil
}

// Matches reports whether a normalized pattern selects the given kind
func Matches(pattern string, kind meshnode.EventKind) bool {
	return pattern == MatchAll || pattern == kind.String()
}
