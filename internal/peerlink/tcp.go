package peerlink

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/peerlink"
)

// TCPConnection implements peerlink.Connection over a net.Conn.
// Receive has a single reader; Send may be called from any goroutine.
type TCPConnection struct {
	conn net.Conn
	buf  []byte

	closeOnce sync.Once
	closeErr  error
}

// NewTCPConnection wraps an established stream (usually one returned by Accept).
func NewTCPConnection(conn net.Conn, config *Config) *TCPConnection {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	cfg.SetDefaults()

	return &TCPConnection{
		conn: conn,
		buf:  make([]byte, cfg.ReadBufferSize),
	}
}

// Dial opens an outbound stream to address and wraps it.
func Dial(ctx context.Context, address string, config *Config) (*TCPConnection, error) {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, cfg.Network, address)
	if err != nil {
		return nil, classify("dial", err)
	}
	return NewTCPConnection(conn, &cfg), nil
}

// Send writes the UTF-8 encoding of text in one write call
func (c *TCPConnection) Send(text string) error {
	if _, err := c.conn.Write([]byte(text)); err != nil {
		return classify("send", err)
	}
	return nil
}

// Receive blocks for the first chunk, then keeps reading while the socket
// reports more bytes already queued. Everything read is returned as one message.
func (c *TCPConnection) Receive() (string, error) {
	n, err := c.conn.Read(c.buf)
	if n == 0 && err == nil {
		// A zero-byte read without error is not a message; treat like the
		// stream having nothing more to give.
		err = io.EOF
	}
	if err != nil && n == 0 {
		return "", classify("receive", err)
	}

	var sb strings.Builder
	sb.Write(c.buf[:n])

	for err == nil {
		var pending int
		pending, err = available(c.conn)
		if err != nil || pending <= 0 {
			break
		}
		n, err = c.conn.Read(c.buf)
		sb.Write(c.buf[:n])
	}
	// A failure during the drain surfaces on the next Receive; what was read so far
	// is still a complete message.

	return strings.ToValidUTF8(sb.String(), "\uFFFD"), nil
}

// RemoteAddr returns the OS-reported address of the far side
func (c *TCPConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local address of the stream
func (c *TCPConnection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close releases the socket. Safe to call more than once; a blocked Receive
// returns a KindClosed error.
func (c *TCPConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// classify maps a raw socket error onto the peerlink error taxonomy
func classify(op string, err error) error {
	kind := peerlink.KindOther
	switch {
	case errors.Is(err, net.ErrClosed):
		kind = peerlink.KindClosed
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		kind = peerlink.KindReset
	}
	return &peerlink.TransportError{Kind: kind, Op: op, Err: err}
}

// Verify that TCPConnection implements the Connection interface at compile time
var _ peerlink.Connection = (*TCPConnection)(nil)
