package peerlink

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/peerlink"
)

// connectedPair returns a dialed connection and the matching accepted one
func connectedPair(t *testing.T) (*TCPConnection, *TCPConnection) {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := Dial(context.Background(), ln.Addr().String(), nil)
	require.NoError(t, err)

	serverConn, ok := <-accepted
	require.True(t, ok, "accept failed")
	server := NewTCPConnection(serverConn, nil)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// receiveAtLeast keeps receiving until n bytes have arrived, tolerating split delivery
func receiveAtLeast(t *testing.T, conn *TCPConnection, n int) string {
	t.Helper()

	var sb strings.Builder
	for sb.Len() < n {
		text, err := conn.Receive()
		require.NoError(t, err)
		sb.WriteString(text)
	}
	return sb.String()
}

func TestTCPConnection_SendReceive(t *testing.T) {
	client, server := connectedPair(t)

	require.NoError(t, client.Send("hello mesh"))
	text, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, "hello mesh", text)

	require.NoError(t, server.Send("привет"))
	text, err = client.Receive()
	require.NoError(t, err)
	assert.Equal(t, "привет", text)
}

func TestTCPConnection_QuickSendsMayCoalesce(t *testing.T) {
	client, server := connectedPair(t)

	require.NoError(t, client.Send("first"))
	require.NoError(t, client.Send("second"))

	// Either one coalesced message or two separate ones is acceptable.
	got := receiveAtLeast(t, server, len("firstsecond"))
	assert.Equal(t, "firstsecond", got)
}

func TestTCPConnection_LargeMessage(t *testing.T) {
	client, server := connectedPair(t)

	payload := strings.Repeat("0123456789abcdef", 8192)
	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(payload) }()

	got := receiveAtLeast(t, server, len(payload))
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestTCPConnection_InvalidUTF8IsReplaced(t *testing.T) {
	client, server := connectedPair(t)

	_, err := client.conn.Write([]byte{'o', 'k', 0xff})
	require.NoError(t, err)

	text, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ok\uFFFD", text)
}

func TestTCPConnection_RemoteCloseIsReset(t *testing.T) {
	client, server := connectedPair(t)

	require.NoError(t, client.Close())

	_, err := server.Receive()
	require.Error(t, err)
	assert.Equal(t, peerlink.KindReset, peerlink.KindOf(err))
	assert.True(t, peerlink.IsReset(err))
}

func TestTCPConnection_CloseUnblocksReceive(t *testing.T) {
	_, server := connectedPair(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := server.Receive()
		errCh <- err
	}()

	// Give the reader a moment to block
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, server.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, peerlink.KindClosed, peerlink.KindOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestTCPConnection_CloseTwice(t *testing.T) {
	client, _ := connectedPair(t)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	err := client.Send("after close")
	require.Error(t, err)
	assert.Equal(t, peerlink.KindClosed, peerlink.KindOf(err))
}

func TestTCPConnection_RemoteAddr(t *testing.T) {
	client, server := connectedPair(t)

	// The server sees the client's ephemeral source port, not a listening port.
	assert.Equal(t, client.LocalAddr().String(), server.RemoteAddr().String())

	tcpAddr, ok := server.RemoteAddr().(*net.TCPAddr)
	require.True(t, ok)
	assert.True(t, tcpAddr.IP.IsLoopback())
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, nil)
	require.Error(t, err)

	var te *peerlink.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
}

func TestDial_InvalidConfig(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", &Config{Network: "udp"})
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}
