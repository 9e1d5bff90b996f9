package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rmacdonaldsmith/meshchat-go/internal/config"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestSetupLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meshchat.log")

	logger, err := SetupLogger(config.LogConfig{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{path},
	})
	require.NoError(t, err)
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Info("node started", zap.Int("port", 5000))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"node started"`)
	assert.Contains(t, string(data), `"port":5000`)
}

func TestSetupLogger_RotationUsesConfiguredFilename(t *testing.T) {
	dir := t.TempDir()
	rotated := filepath.Join(dir, "rotated.log")

	logger, err := SetupLogger(config.LogConfig{
		Level:   "info",
		Outputs: []string{filepath.Join(dir, "ignored.log")},
		Rotation: config.RotationConfig{
			Enable:   true,
			Filename: rotated,
		},
	})
	require.NoError(t, err)
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Warn("rotating")
	_ = logger.Sync()

	_, err = os.Stat(rotated)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ignored.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestSetupLogger_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")

	logger, err := SetupLogger(config.LogConfig{Level: "warn", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestEventLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	events := NewEventLogger(zap.New(core))

	peer, err := meshnode.ParseEndpoint("127.0.0.1:5001")
	require.NoError(t, err)

	events.HandleEvent(meshnode.NewEvent(meshnode.EventConnect, peer, ""))
	events.HandleEvent(meshnode.NewEvent(meshnode.EventMessage, peer, "hi"))
	events.HandleEvent(meshnode.NewEvent(meshnode.EventError, peer, "boom"))
	events.HandleEvent(meshnode.NewEvent(meshnode.EventDisconnect, peer, ""))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "peer connected", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "hi", entries[1].ContextMap()["text"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "127.0.0.1:5001", entries[3].ContextMap()["peer"])
}

func TestEventLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewEventLogger(nil).HandleEvent(meshnode.Event{Kind: meshnode.EventMessage})
	})
}
