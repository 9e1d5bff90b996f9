package routingtable

import (
	"sync"
	"sync/atomic"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// ChannelSubscriber buffers delivered events in a channel
type ChannelSubscriber struct {
	id      string
	typ     SubscriberType
	events  chan meshnode.Event
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewChannelSubscriber creates a subscriber with the given buffer size
func NewChannelSubscriber(id string, typ SubscriberType, buffer int) *ChannelSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSubscriber{
		id:     id,
		typ:    typ,
		events: make(chan meshnode.Event, buffer),
	}
}

// ID returns the unique identifier for this subscriber
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Type returns the kind of client behind this subscriber
func (s *ChannelSubscriber) Type() SubscriberType {
	return s.typ
}

// Deliver queues an event, dropping it when the buffer is full or the subscriber closed
func (s *ChannelSubscriber) Deliver(event meshnode.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.events <- event:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Events returns the channel delivered events arrive on; it is closed by Close
func (s *ChannelSubscriber) Events() <-chan meshnode.Event {
	return s.events
}

// Dropped returns the number of events lost to a full buffer
func (s *ChannelSubscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops delivery and closes the events channel
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Verify that ChannelSubscriber implements the Subscriber interface at compile time
var _ Subscriber = (*ChannelSubscriber)(nil)
