package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/meshchat-go/internal/eventlog"
	"github.com/rmacdonaldsmith/meshchat-go/internal/httpapi"
	"github.com/rmacdonaldsmith/meshchat-go/internal/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/internal/routingtable"
	eventlogpkg "github.com/rmacdonaldsmith/meshchat-go/pkg/eventlog"
	meshnodepkg "github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

type testNode struct {
	node   *meshnode.TCPMeshNode
	routes *routingtable.InMemoryRoutingTable
	http   *httptest.Server
}

func startTestNode(t *testing.T, noAuth bool) *testNode {
	t.Helper()

	history := eventlog.NewInMemoryEventLog(100)
	routes := routingtable.NewInMemoryRoutingTable()
	node, err := meshnode.NewTCPMeshNode(meshnode.NewConfig("127.0.0.1:0"),
		meshnodepkg.MultiObserver{eventlogpkg.Recorder(history), routes})
	if err != nil {
		t.Fatalf("Failed to create mesh node: %v", err)
	}

	server, err := httpapi.NewServer(node, history, routes, httpapi.Config{
		SecretKey:         "cli-test-secret",
		NoAuth:            noAuth,
		KeepaliveInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create HTTP server: %v", err)
	}

	tn := &testNode{node: node, routes: routes, http: httptest.NewServer(server.Handler())}
	t.Cleanup(func() {
		tn.http.Close()
		_ = node.Close()
		_ = routes.Close()
		_ = history.Close()
	})
	return tn
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(tokenEnv, "")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// loginToken runs the auth command and returns the printed token
func loginToken(t *testing.T, tn *testNode, clientID string) string {
	t.Helper()

	out, err := runCLI(t, "auth", "--server", tn.http.URL, "--client-id", clientID)
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		if token, ok := strings.CutPrefix(line, "Token: "); ok {
			return token
		}
	}
	t.Fatalf("No token in auth output: %s", out)
	return ""
}

func TestAuthCommand(t *testing.T) {
	tn := startTestNode(t, false)

	out, err := runCLI(t, "auth", "--server", tn.http.URL, "--client-id", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Authentication successful")
	assert.Contains(t, out, "export MESHCHAT_TOKEN=")
}

func TestAuthCommand_RequiresClientID(t *testing.T) {
	tn := startTestNode(t, false)

	_, err := runCLI(t, "auth", "--server", tn.http.URL)
	if err == nil {
		t.Fatal("Expected error without client id")
	}
	assert.Contains(t, err.Error(), "client-id is required")
}

func TestCommands_RequireToken(t *testing.T) {
	tn := startTestNode(t, false)

	for _, args := range [][]string{
		{"peers"},
		{"send", "hi"},
		{"connect", "127.0.0.1:5000"},
		{"history"},
		{"stream"},
	} {
		_, err := runCLI(t, append(args, "--server", tn.http.URL)...)
		if err == nil {
			t.Fatalf("Expected %v to fail without a token", args)
		}
		assert.Contains(t, err.Error(), "not authenticated")
	}
}

func TestCommands_WithTokenFromAuth(t *testing.T) {
	tn := startTestNode(t, false)

	token := loginToken(t, tn, "alice")

	out, err := runCLI(t, "peers", "--server", tn.http.URL, "--token", token)
	require.NoError(t, err)
	assert.Contains(t, out, tn.node.LocalEndpoint().String())
	assert.Contains(t, out, "No peers")

	_, err = runCLI(t, "peers", "--server", tn.http.URL, "--token", "garbage")
	require.Error(t, err)
}

func TestConnectSendAndHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mesh join in short mode")
	}

	tn := startTestNode(t, true)
	other, err := meshnode.NewTCPMeshNode(meshnode.NewConfig("127.0.0.1:0"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	target := other.LocalEndpoint().String()

	out, err := runCLI(t, "connect", target, "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Joined chat through "+target+", now connected to 1 peers")

	out, err = runCLI(t, "peers", "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Peers (1):")
	assert.Contains(t, out, target)

	out, err = runCLI(t, "send", "hello", "world", "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Message sent to 1 peers")

	out, err = runCLI(t, "history", "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "connect")
	assert.Contains(t, out, "hello world")

	out, err = runCLI(t, "history", "--cbor", "--limit", "1", "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 shown)")

	out, err = runCLI(t, "connect", target, "--server", tn.http.URL, "--no-auth")
	require.Error(t, err, "second join should be rejected, output: %s", out)
}

func TestHistoryCommand_JSON(t *testing.T) {
	tn := startTestNode(t, true)
	require.NoError(t, tn.node.Send("local only"))

	out, err := runCLI(t, "history", "--json", "--server", tn.http.URL, "--no-auth")
	require.NoError(t, err)
	assert.Contains(t, out, `"records"`)
	assert.Contains(t, out, `"local only"`)
}

func TestStreamCommand(t *testing.T) {
	tn := startTestNode(t, true)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		var out bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"stream", "--kind", "message", "--max-events", "1", "--server", tn.http.URL, "--no-auth"})
		err := cmd.ExecuteContext(context.Background())
		done <- result{out: out.String(), err: err}
	}()

	require.Eventually(t, func() bool {
		count, err := tn.routes.GetSubscriberCount(context.Background())
		return err == nil && count == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, tn.node.Send("streamed text"))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "message")
		assert.Contains(t, res.out, "streamed text")
	case <-time.After(5 * time.Second):
		t.Fatal("stream command did not exit after one event")
	}
}

func TestHealthCommand(t *testing.T) {
	tn := startTestNode(t, false)

	out, err := runCLI(t, "health", "--server", tn.http.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Node is healthy")
	assert.Contains(t, out, "State: Idle")
	assert.Contains(t, out, "Connected Peers: 0")

	require.NoError(t, tn.node.Close())

	out, err = runCLI(t, "health", "--server", tn.http.URL)
	require.Error(t, err)
	assert.Contains(t, out, "Node is NOT healthy")
	assert.Contains(t, out, "node is disposed")
}

func TestHealthCommand_Unreachable(t *testing.T) {
	_, err := runCLI(t, "health", "--server", "http://127.0.0.1:1", "--timeout", "500ms")
	require.Error(t, err)
}

func TestAdminCommands(t *testing.T) {
	tn := startTestNode(t, false)
	require.NoError(t, tn.node.Send("counted"))

	_, err := runCLI(t, "admin", "stats", "--server", tn.http.URL, "--token", loginToken(t, tn, "alice"))
	require.Error(t, err, "non-admin token must be rejected")

	adminToken := loginToken(t, tn, "admin")

	out, err := runCLI(t, "admin", "stats", "--server", tn.http.URL, "--token", adminToken)
	require.NoError(t, err)
	assert.Contains(t, out, "State: Idle")
	assert.Contains(t, out, "History: 1 total, 1 retained")
	assert.Contains(t, out, "message")

	out, err = runCLI(t, "admin", "subscriptions", "--server", tn.http.URL, "--token", adminToken)
	require.NoError(t, err)
	assert.Contains(t, out, "No active subscriptions")
}
