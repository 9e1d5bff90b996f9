package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/internal/config"
	"github.com/rmacdonaldsmith/meshchat-go/internal/grpcapi"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/httpclient"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "MeshChat v0.1.0\n", out.String())
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node:
  port: 5100
  seeds: ["10.0.0.1:5000"]
http:
  port: 9000
log:
  level: warn
`), 0o600))

	opts := &runOptions{}
	cmd := &cobra.Command{Use: "test"}
	bindRunFlags(cmd, opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--port", "5200",
		"--seed", "127.0.0.1:5001", "--seed", "127.0.0.1:5002",
		"--grpc", "127.0.0.1:0",
		"--no-auth",
	}))

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, 5200, cfg.Node.Port)
	assert.Equal(t, []string{"127.0.0.1:5001", "127.0.0.1:5002"}, cfg.Node.Seeds)
	assert.Equal(t, 9000, cfg.HTTP.Port, "unset flag keeps file value")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.HTTP.NoAuth)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, "127.0.0.1:0", cfg.GRPC.Address)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	opts := &runOptions{}
	cmd := &cobra.Command{Use: "test"}
	bindRunFlags(cmd, opts)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))

	_, err := loadConfig(cmd, opts)
	assert.Error(t, err)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Node.BindHost = "127.0.0.1"
	cfg.Node.Port = 0
	cfg.HTTP.Port = 0
	cfg.HTTP.Secret = "test-secret"
	cfg.HTTP.RateLimit = 0
	cfg.GRPC.Enabled = true
	cfg.GRPC.Address = "127.0.0.1:0"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.shutdown() })
	return a
}

func TestApp_JoinsSeedAndServesControlSurfaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping app integration test in short mode")
	}

	first := newTestApp(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	first.start(ctx)

	cfg := testConfig()
	cfg.Node.Seeds = []string{first.node.LocalEndpoint().String()}
	second := newTestApp(t, cfg)
	second.start(ctx)

	require.Equal(t, 1, len(second.node.Peers()))
	require.Eventually(t, func() bool { return len(first.node.Peers()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// HTTP surface of the first node
	client, err := httpclient.NewClient(httpclient.Config{
		ServerURL: "http://" + first.httpListener.Addr().String(),
		ClientID:  "tester",
	})
	require.NoError(t, err)
	require.NoError(t, client.Authenticate(ctx))

	peers, err := client.Peers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.node.LocalEndpoint().String()}, peers.Peers)

	_, err = client.SendMessage(ctx, "hello from http")
	require.NoError(t, err)

	// gRPC surface of the second node
	rpc, err := grpcapi.Dial(second.grpcListener.Addr().String())
	require.NoError(t, err)
	defer rpc.Close()

	health, err := rpc.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.ConnectedPeers)

	require.Eventually(t, func() bool {
		stats, err := second.history.GetStatistics(ctx)
		return err == nil && stats.KindCounts["message"] == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestApp_UnreachableSeedKeepsRunning(t *testing.T) {
	cfg := testConfig()
	cfg.GRPC.Enabled = false
	cfg.Node.Seeds = []string{"127.0.0.1:1"}
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.start(ctx)

	assert.Empty(t, a.node.Peers())
	assert.True(t, a.node.GetHealth().Healthy)
}

func TestApp_WaitReturnsWhenNodeStops(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Enabled = false
	cfg.GRPC.Enabled = false
	a := newTestApp(t, cfg)
	a.start(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.wait(context.Background()) }()

	require.NoError(t, a.node.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after node closed")
	}
	assert.NoError(t, a.shutdown())
}

func TestApp_PortInUse(t *testing.T) {
	first := newTestApp(t, testConfig())

	cfg := testConfig()
	cfg.Node.Port = int(first.node.LocalEndpoint().Port())
	_, err := newApp(cfg, zap.NewNop())
	assert.Error(t, err)
}
