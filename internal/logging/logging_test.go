package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKeyValuesReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := FromZap(zap.New(core)).With("sweep_id", "abc")

	log.Debug("hidden")
	log.Info("compressed", "file", "app_240101.log")
	log.Warn("degraded")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "compressed", entry.Message)
	require.Equal(t, map[string]any{"sweep_id": "abc", "file": "app_240101.log"}, entry.ContextMap())
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archiver.log")
	log, sync, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("skipped")
	log.Error("compression failed", "file", "app_240101.log")
	require.NoError(t, sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `"message":"compression failed"`)
	require.Contains(t, lines[0], `"file":"app_240101.log"`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	require.Error(t, err)
}
