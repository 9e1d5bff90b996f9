package meshnode

import "errors"

var (
	// ErrAlreadyInChat is returned by Connect when the node already has peers
	// or another join is in progress
	ErrAlreadyInChat = errors.New("already connected to some chat")

	// ErrSelfConnect is returned by Connect when the target is this node
	ErrSelfConnect = errors.New("cannot connect to self")

	// ErrDuplicatePeer is returned by Connect when the target is already a peer
	ErrDuplicatePeer = errors.New("already connected to peer")

	// ErrHandshakeFailure is returned when a join reply is neither "NO" nor a
	// well-formed endpoint list
	ErrHandshakeFailure = errors.New("malformed handshake reply")

	// ErrInvalidEndpoint is returned when an endpoint cannot be parsed
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrNodeClosed is returned when operating on a disposed node
	ErrNodeClosed = errors.New("mesh node is closed")
)
