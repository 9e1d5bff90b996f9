package routingtable

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/routingtable"
)

var (
	// ErrNilSubscriber is returned when a nil subscriber is provided
	ErrNilSubscriber = errors.New("subscriber cannot be nil")
	// ErrEmptySubscriberID is returned when a subscriber has no ID
	ErrEmptySubscriberID = errors.New("subscriber ID cannot be empty")
	// ErrClosed is returned by operations on a closed routing table
	ErrClosed = errors.New("routing table is closed")
)

// InMemoryRoutingTable implements the routingtable.RoutingTable interface.
// Subscriptions are kept per normalized pattern; there are only five, so a
// dispatch looks up "*" and the event's kind directly.
// It is safe for concurrent use.
type InMemoryRoutingTable struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]routingtable.Subscriber // pattern -> id -> subscriber
	closed        bool
}

// NewInMemoryRoutingTable creates an empty routing table
func NewInMemoryRoutingTable() *InMemoryRoutingTable {
	return &InMemoryRoutingTable{
		subscriptions: make(map[string]map[string]routingtable.Subscriber),
	}
}

// Subscribe adds a subscription for a pattern to a subscriber.
// Subscribing the same subscriber twice to a pattern is a no-op.
func (rt *InMemoryRoutingTable) Subscribe(ctx context.Context, pattern string, subscriber routingtable.Subscriber) error {
	if subscriber == nil {
		return ErrNilSubscriber
	}
	if strings.TrimSpace(subscriber.ID()) == "" {
		return ErrEmptySubscriberID
	}
	normalized, err := routingtable.NormalizePattern(pattern)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return ErrClosed
	}

	subs := rt.subscriptions[normalized]
	if subs == nil {
		subs = make(map[string]routingtable.Subscriber)
		rt.subscriptions[normalized] = subs
	}
	subs[subscriber.ID()] = subscriber
	return nil
}

// Unsubscribe removes a subscription for a pattern from a subscriber.
// Removing a subscription that does not exist is not an error.
func (rt *InMemoryRoutingTable) Unsubscribe(ctx context.Context, pattern string, subscriberID string) error {
	normalized, err := routingtable.NormalizePattern(pattern)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if subs := rt.subscriptions[normalized]; subs != nil {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(rt.subscriptions, normalized)
		}
	}
	return nil
}

// UnsubscribeAll removes every subscription of a subscriber
func (rt *InMemoryRoutingTable) UnsubscribeAll(ctx context.Context, subscriberID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for pattern, subs := range rt.subscriptions {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(rt.subscriptions, pattern)
		}
	}
	return nil
}

// GetSubscribers returns all subscribers interested in the given event kind,
// sorted by ID and without duplicates.
func (rt *InMemoryRoutingTable) GetSubscribers(ctx context.Context, kind meshnode.EventKind) ([]routingtable.Subscriber, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	return rt.matchLocked(kind), nil
}

// GetAllSubscriptions returns all current subscriptions
func (rt *InMemoryRoutingTable) GetAllSubscriptions(ctx context.Context) ([]routingtable.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var result []routingtable.Subscription
	for pattern, subs := range rt.subscriptions {
		for _, sub := range subs {
			result = append(result, routingtable.Subscription{Pattern: pattern, Subscriber: sub})
		}
	}
	slices.SortFunc(result, func(a, b routingtable.Subscription) int {
		if c := strings.Compare(a.Pattern, b.Pattern); c != 0 {
			return c
		}
		return strings.Compare(a.Subscriber.ID(), b.Subscriber.ID())
	})
	return result, nil
}

// GetSubscriberCount returns the number of distinct subscribers
func (rt *InMemoryRoutingTable) GetSubscriberCount(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	ids := make(map[string]struct{})
	for _, subs := range rt.subscriptions {
		for id := range subs {
			ids[id] = struct{}{}
		}
	}
	return len(ids), nil
}

// Dispatch delivers an event to every matching subscriber
func (rt *InMemoryRoutingTable) Dispatch(event meshnode.Event) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if rt.closed {
		return 0
	}

	delivered := 0
	for _, sub := range rt.matchLocked(event.Kind) {
		if sub.Deliver(event) {
			delivered++
		}
	}
	return delivered
}

// HandleEvent implements meshnode.Observer
func (rt *InMemoryRoutingTable) HandleEvent(event meshnode.Event) {
	rt.Dispatch(event)
}

// Close drops all subscriptions; later dispatches deliver nothing.
func (rt *InMemoryRoutingTable) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil // Already closed, idempotent
	}

	rt.subscriptions = make(map[string]map[string]routingtable.Subscriber)
	rt.closed = true
	return nil
}

// matchLocked must be called with mu held
func (rt *InMemoryRoutingTable) matchLocked(kind meshnode.EventKind) []routingtable.Subscriber {
	seen := make(map[string]routingtable.Subscriber)
	for _, pattern := range []string{routingtable.MatchAll, kind.String()} {
		for id, sub := range rt.subscriptions[pattern] {
			seen[id] = sub
		}
	}

	result := make([]routingtable.Subscriber, 0, len(seen))
	for _, sub := range seen {
		result = append(result, sub)
	}
	slices.SortFunc(result, func(a, b routingtable.Subscriber) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return result
}

// Verify that InMemoryRoutingTable implements the RoutingTable interface at compile time
var _ routingtable.RoutingTable = (*InMemoryRoutingTable)(nil)
