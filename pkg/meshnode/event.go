package meshnode

import (
	"fmt"
	"strings"
	"time"
)

// EventKind identifies a mesh lifecycle notification
type EventKind int

const (
	// EventConnect is emitted when a peer joins (or this node joins a chat)
	EventConnect EventKind = iota

	// EventMessage carries a chat message, including the node's own broadcasts
	EventMessage

	// EventDisconnect is emitted when a peer leaves the mesh
	EventDisconnect

	// EventError is emitted when a peer link fails for a reason other than departure
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventDisconnect:
		return "disconnect"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseEventKind parses the lower-case name produced by EventKind.String
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connect":
		return EventConnect, nil
	case "message":
		return EventMessage, nil
	case "disconnect":
		return EventDisconnect, nil
	case "error":
		return EventError, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is a single notification delivered to an Observer.
type Event struct {
	Kind EventKind

	// Peer is the endpoint the event is about. For the node's own broadcast
	// it is the node's local endpoint.
	Peer Endpoint

	// Payload is the message text (EventMessage) or error description (EventError)
	Payload string

	Timestamp time.Time
}

// NewEvent creates an event stamped with the current UTC time
func NewEvent(kind EventKind, peer Endpoint, payload string) Event {
	return Event{
		Kind:      kind,
		Peer:      peer,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// HasPayload reports whether the event kind carries a payload
func (e Event) HasPayload() bool {
	return e.Kind == EventMessage || e.Kind == EventError
}

func (e Event) String() string {
	if e.HasPayload() {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Peer, e.Payload)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Peer)
}
