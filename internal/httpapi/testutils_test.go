package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rmacdonaldsmith/meshchat-go/internal/eventlog"
	"github.com/rmacdonaldsmith/meshchat-go/internal/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/internal/routingtable"
	eventlogpkg "github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
	meshnodepkg "github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

const testSecret = "test-secret-key"

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Node    *meshnode.TCPMeshNode
	History *eventlog.InMemoryEventLog
	Routes  *routingtable.InMemoryRoutingTable
	Server  *Server
	Auth    *JWTAuth
	HTTP    *httptest.Server
}

// NewTestServerSetup creates a mesh node on loopback with an HTTP API in front of it
func NewTestServerSetup(t *testing.T) *TestServerSetup {
	t.Helper()
	return NewTestServerSetupWithConfig(t, Config{SecretKey: testSecret})
}

// NewTestServerSetupWithConfig is NewTestServerSetup with a custom server config
func NewTestServerSetupWithConfig(t *testing.T, config Config) *TestServerSetup {
	t.Helper()

	history := eventlog.NewInMemoryEventLog(100)
	routes := routingtable.NewInMemoryRoutingTable()
	observer := meshnodepkg.MultiObserver{eventlogpkg.Recorder(history), routes}

	node, err := meshnode.NewTCPMeshNode(meshnode.NewConfig("127.0.0.1:0"), observer)
	if err != nil {
		t.Fatalf("Failed to create mesh node: %v", err)
	}

	server, err := NewServer(node, history, routes, config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	setup := &TestServerSetup{
		Node:    node,
		History: history,
		Routes:  routes,
		Server:  server,
		Auth:    server.jwtAuth,
		HTTP:    httptest.NewServer(server.Handler()),
	}
	t.Cleanup(setup.Close)
	return setup
}

// Close cleans up test resources
func (setup *TestServerSetup) Close() {
	setup.HTTP.Close()
	_ = setup.Node.Close()
	_ = setup.Routes.Close()
	_ = setup.History.Close()
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, clientID string, isAdmin bool) string {
	t.Helper()

	token, _, err := setup.Auth.GenerateToken(clientID, isAdmin)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}

// Do sends a request to the test server; body is JSON-encoded when not nil
func (setup *TestServerSetup) Do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, setup.HTTP.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// decodeJSON decodes a response body into v
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}
