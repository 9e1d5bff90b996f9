package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, messages []EventStreamMessage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": ping\n\n")
		for _, msg := range messages {
			data, err := json.Marshal(msg)
			require.NoError(t, err)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, data)
		}
		fmt.Fprint(w, "data: {not json}\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}
}

func TestStreamClient_ReceivesEvents(t *testing.T) {
	messages := []EventStreamMessage{
		{Kind: "connect", Peer: "127.0.0.1:5001", Timestamp: time.Now().UTC()},
		{Kind: "message", Peer: "127.0.0.1:5001", Payload: "hello", Timestamp: time.Now().UTC()},
	}
	client := newTestClient(t, sseHandler(t, messages))

	stream, err := client.Stream(context.Background(), StreamConfig{})
	require.NoError(t, err)
	defer stream.Close()

	for _, want := range messages {
		select {
		case got := <-stream.Events():
			assert.Equal(t, want.Kind, got.Kind)
			assert.Equal(t, want.Peer, got.Peer)
			assert.Equal(t, want.Payload, got.Payload)
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for %s event", want.Kind)
		}
	}

	select {
	case err := <-stream.Errors():
		assert.Contains(t, err.Error(), "failed to parse event")
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for parse error")
	}
}

func TestStreamClient_KindFilter(t *testing.T) {
	var query atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("kind"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	stream, err := client.Stream(context.Background(), StreamConfig{Kind: "message"})
	require.NoError(t, err)
	defer stream.Close()

	require.Eventually(t, func() bool { return query.Load() == "message" }, 5*time.Second, 10*time.Millisecond)
}

func TestStreamClient_CloseStopsStreaming(t *testing.T) {
	client := newTestClient(t, sseHandler(t, nil))

	stream, err := client.Stream(context.Background(), StreamConfig{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	// Channels are closed once streaming ends
	_, open := <-stream.Done()
	assert.False(t, open)
	for range stream.Events() {
	}
}

func TestStreamClient_MaxReconnectAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ErrorResponse{Message: "Invalid token", Code: 401})
	})

	stream, err := client.Stream(context.Background(), StreamConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 2})
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not give up")
	}
	assert.Equal(t, int32(3), calls.Load())

	var errs []error
	for err := range stream.Errors() {
		errs = append(errs, err)
	}
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Error(), "max reconnect attempts (2) exceeded")
}

func TestStreamConfig_SetDefaults(t *testing.T) {
	var config StreamConfig
	config.SetDefaults()
	assert.Equal(t, 100, config.BufferSize)
	assert.Equal(t, 2*time.Second, config.ReconnectDelay)
}
