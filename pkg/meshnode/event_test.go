package meshnode

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind_RoundTripNames(t *testing.T) {
	for _, kind := range []EventKind{EventConnect, EventMessage, EventDisconnect, EventError} {
		parsed, err := ParseEventKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseEventKind("join")
	assert.Error(t, err)
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestEvent_Payload(t *testing.T) {
	peer := NewEndpoint(netip.MustParseAddr("127.0.0.1"), 5000)

	msg := NewEvent(EventMessage, peer, "hi")
	assert.True(t, msg.HasPayload())
	assert.Equal(t, "message 127.0.0.1:5000: hi", msg.String())
	assert.False(t, msg.Timestamp.IsZero())

	conn := NewEvent(EventConnect, peer, "")
	assert.False(t, conn.HasPayload())
	assert.Equal(t, "connect 127.0.0.1:5000", conn.String())

	assert.True(t, NewEvent(EventError, peer, "boom").HasPayload())
	assert.False(t, NewEvent(EventDisconnect, peer, "").HasPayload())
}

func TestMultiObserver(t *testing.T) {
	var first, second []EventKind
	observers := MultiObserver{
		ObserverFunc(func(e Event) { first = append(first, e.Kind) }),
		nil,
		ObserverFunc(func(e Event) { second = append(second, e.Kind) }),
	}

	observers.HandleEvent(Event{Kind: EventConnect})
	observers.HandleEvent(Event{Kind: EventMessage})

	assert.Equal(t, []EventKind{EventConnect, EventMessage}, first)
	assert.Equal(t, first, second)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Joining", StateJoining.String())
	assert.Equal(t, "Member", StateMember.String())
	assert.Equal(t, "Disposed", StateDisposed.String())
	assert.Equal(t, "Unknown", State(-1).String())
}
