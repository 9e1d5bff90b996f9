package meshnode

import (
	"context"
	"io"
)

// State is the lifecycle state of a mesh node
type State int

const (
	// StateIdle means the node is listening and has never been part of a chat
	StateIdle State = iota

	// StateJoining means an outbound join handshake is in progress
	StateJoining

	// StateMember means the node has joined or started a chat
	StateMember

	// StateDisposed means the node has been closed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateJoining:
		return "Joining"
	case StateMember:
		return "Member"
	case StateDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Observer receives mesh events. HandleEvent is called with the node's lock held,
// so implementations must not block and must not call back into the node.
type Observer interface {
	HandleEvent(event Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(event Event)

// HandleEvent calls f(event)
func (f ObserverFunc) HandleEvent(event Event) {
	f(event)
}

// MultiObserver delivers each event to every observer in order
type MultiObserver []Observer

// HandleEvent fans the event out, skipping nil observers
func (m MultiObserver) HandleEvent(event Event) {
	for _, o := range m {
		if o != nil {
			o.HandleEvent(event)
		}
	}
}

// MeshNode is a single member of a full-mesh chat.
type MeshNode interface {
	// Close stops accepting, closes every peer link and waits for all
	// background goroutines to finish.
	io.Closer

	// Connect joins the chat that target belongs to. The node must not have
	// any peers yet. On success the node is directly connected to target and
	// to every peer target announced.
	Connect(ctx context.Context, target Endpoint) error

	// Send emits a local Message event and writes text to every peer.
	Send(text string) error

	// LocalEndpoint returns the endpoint this node is known by.
	LocalEndpoint() Endpoint

	// Peers returns a sorted snapshot of the current peer set.
	Peers() []Endpoint

	// State returns the lifecycle state.
	State() State

	// GetHealth returns a summary of the node's status.
	GetHealth() HealthStatus

	// Done is closed when the node stops, either through Close or because
	// the accept loop failed.
	Done() <-chan struct{}

	// Err returns the fatal accept-loop error, if any.
	Err() error
}

// HealthStatus represents the overall health of a mesh node
type HealthStatus struct {
	// Healthy is false once the node is disposed or its accept loop failed
	Healthy bool

	// State is the lifecycle state at the time of the check
	State State

	// LocalEndpoint is the endpoint this node is known by
	LocalEndpoint Endpoint

	// ConnectedPeers is the number of entries in the peer set
	ConnectedPeers int

	// Message provides additional health information
	Message string
}
