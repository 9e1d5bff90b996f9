package peerlink

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrorKind classifies a transport failure
type ErrorKind int

const (
	// KindOther is any transport failure that is not a reset or a local close
	KindOther ErrorKind = iota

	// KindReset means the remote peer reset or closed the stream
	KindReset

	// KindClosed means the stream was closed locally (use after close)
	KindClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindOther:
		return "Other"
	case KindReset:
		return "Reset"
	case KindClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// TransportError wraps a failure of the underlying stream.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("peerlink %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or KindOther when err is not a TransportError.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindOther
}

// IsReset reports whether err means the remote peer has gone away
func IsReset(err error) bool {
	return err != nil && KindOf(err) == KindReset
}

// Connection is a live bidirectional stream to exactly one remote peer.
// Send may be called concurrently with Receive; Receive has a single reader.
type Connection interface {
	io.Closer

	// Send writes the UTF-8 encoding of text as a single write.
	Send(text string) error

	// Receive blocks for the next chunk of data, drains whatever else is already
	// buffered and returns it decoded as one message.
	Receive() (string, error)

	// RemoteAddr returns the transport-level address of the far side.
	RemoteAddr() net.Addr
}
