// Package peerlink provides the contract for a single live link to one remote mesh peer.
//
// This package defines the core abstractions for the meshchat peer link component:
//   - Connection: one bidirectional byte stream to exactly one remote peer
//   - TransportError: a classified transport failure (reset, closed, other)
//
// A Connection carries plain UTF-8 text with no envelope and no length prefix. Send writes
// the encoded text in one write. Receive blocks until the first chunk arrives and then drains
// whatever the transport has already buffered, returning everything as one logical message.
// Two quick sends may therefore be observed as one message, and one large send may be
// observed as several. Callers must not impose their own framing on top.
//
// Errors returned by Send and Receive are *TransportError values. Use KindOf (or errors.As)
// to tell a departed peer (KindReset) from a locally closed link (KindClosed):
//
//	text, err := conn.Receive()
//	switch peerlink.KindOf(err) {
//	case peerlink.KindReset:
//		// remote side went away
//	case peerlink.KindClosed:
//		// we closed the link ourselves
//	}
//
// Implementations live in internal/peerlink.
package peerlink
