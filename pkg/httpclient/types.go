package httpclient

import (
	"time"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the node's HTTP API (e.g., "http://localhost:8081")
	ServerURL string

	// ClientID is the identifier for this client
	ClientID string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for GET requests that fail in transport
	MaxRetries int

	// RetryDelay between GET retries
	RetryDelay time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
}

// AuthResponse represents the response from authentication
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

// PeersResponse describes the node and its current peer set
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

// AdminStatsResponse represents node statistics
type AdminStatsResponse struct {
	State          string              `json:"state"`
	ConnectedPeers int                 `json:"connectedPeers"`
	History        eventlog.Statistics `json:"history"`
}

// SubscriptionInfo describes one live stream subscription
type SubscriptionInfo struct {
	SubscriberID string `json:"subscriberId"`
	Type         string `json:"type"`
	Pattern      string `json:"pattern"`
}

// AdminSubscriptionsResponse lists live stream subscriptions
type AdminSubscriptionsResponse struct {
	Subscriptions []SubscriptionInfo `json:"subscriptions"`
	Count         int                `json:"count"`
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
