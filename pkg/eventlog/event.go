package eventlog

import (
	"fmt"
	"time"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// Record is one mesh event as stored in the history.
type Record struct {
	// Offset is the unique, sequential position of this record in the log
	Offset int64 `json:"offset" cbor:"1,keyasint"`

	// Kind is the event kind name (connect, message, disconnect, error)
	Kind string `json:"kind" cbor:"2,keyasint"`

	// Peer is the endpoint the event is attributed to
	Peer string `json:"peer" cbor:"3,keyasint"`

	// Payload is the chat text or error description
	Payload string `json:"payload,omitempty" cbor:"4,keyasint,omitempty"`

	// Timestamp is when the event was observed
	Timestamp time.Time `json:"timestamp" cbor:"5,keyasint"`
}

// NewRecord creates a Record from a mesh event.
func NewRecord(event meshnode.Event) *Record {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	peer, _ := event.Peer.MarshalText()
	return &Record{
		Kind:      event.Kind.String(),
		Peer:      string(peer),
		Payload:   event.Payload,
		Timestamp: timestamp,
	}
}

// WithOffset returns a copy of the Record with the specified offset.
// This is used internally by the EventLog when storing records.
func (r *Record) WithOffset(offset int64) *Record {
	c := *r
	c.Offset = offset
	return &c
}

// Event converts the record back into a mesh event.
func (r *Record) Event() (meshnode.Event, error) {
	kind, err := meshnode.ParseEventKind(r.Kind)
	if err != nil {
		return meshnode.Event{}, err
	}

	var peer meshnode.Endpoint
	if err := peer.UnmarshalText([]byte(r.Peer)); err != nil {
		return meshnode.Event{}, fmt.Errorf("record %d: %w", r.Offset, err)
	}

	return meshnode.Event{
		Kind:      kind,
		Peer:      peer,
		Payload:   r.Payload,
		Timestamp: r.Timestamp,
	}, nil
}
