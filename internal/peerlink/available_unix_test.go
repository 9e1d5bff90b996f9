//go:build linux || darwin

package peerlink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAvailable_ReportsQueuedBytes(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}
	defer server.Close()

	pending, err := available(server)
	require.NoError(t, err)
	require.Zero(t, pending)

	_, err = client.Write([]byte("hello mesh"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pending, err := available(server)
		return err == nil && pending == len("hello mesh")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAvailable_NonSocketConn(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	pending, err := available(a)
	require.NoError(t, err)
	require.Zero(t, pending)
}
