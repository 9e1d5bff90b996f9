package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendRequest represents a chat message to broadcast
type SendRequest struct {
	Text string `json:"text"`
}

// SendResponse represents the result of a broadcast
type SendResponse struct {
	Recipients int       `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}

// PeersResponse describes this node and its current peer set
type PeersResponse struct {
	LocalEndpoint string   `json:"localEndpoint"`
	State         string   `json:"state"`
	Peers         []string `json:"peers"`
}

// ConnectRequest asks the node to join the chat a member belongs to
type ConnectRequest struct {
	Endpoint string `json:"endpoint"`
}

// ConnectResponse reports the peer set after a join
type ConnectResponse struct {
	Target string   `json:"target"`
	Peers  []string `json:"peers"`
}

// HistoryResponse represents a page of the event history
type HistoryResponse struct {
	Records     []*eventlog.Record `json:"records" cbor:"records"`
	StartOffset int64              `json:"startOffset" cbor:"startOffset"`
	EndOffset   int64              `json:"endOffset" cbor:"endOffset"`
	Count       int                `json:"count" cbor:"count"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy           bool   `json:"healthy"`
	State             string `json:"state"`
	LocalEndpoint     string `json:"localEndpoint"`
	ConnectedPeers    int    `json:"connectedPeers"`
	StreamSubscribers int    `json:"streamSubscribers"`
	HistoryRetained   int    `json:"historyRetained"`
	Message           string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// EventStreamMessage represents a server-sent event message
type EventStreamMessage struct {
	Kind      string    `json:"kind"`
	Peer      string    `json:"peer"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
