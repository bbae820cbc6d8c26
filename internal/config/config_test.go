package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"SYLLABUS_SERVER_URL", "SYLLABUS_REALTIME_URL", "SYLLABUS_CONNECT_ATTEMPTS",
		"SYLLABUS_CONNECT_DELAY", "SYLLABUS_RECONNECT_ATTEMPTS", "SYLLABUS_TOAST_DISMISS",
		"SYLLABUS_LOG_LEVEL", "SYLLABUS_JOB_SEGMENTS",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "http://localhost:8585", cfg.ServerURL)
	assert.Equal(t, "ws://localhost:8585/realtime", cfg.RealtimeURL)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, time.Second, cfg.ConnectDelay)
	assert.Equal(t, 15, cfg.ReconnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.ToastDismiss)
	assert.Equal(t, []string{"generate-content", "syllabus"}, cfg.JobSegments)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYLLABUS_SERVER_URL", "https://api.example.com/v1/")
	t.Setenv("SYLLABUS_REALTIME_URL", "")
	t.Setenv("SYLLABUS_CONNECT_ATTEMPTS", "5")
	t.Setenv("SYLLABUS_CONNECT_DELAY", "250ms")
	t.Setenv("SYLLABUS_RECONNECT_ATTEMPTS", "not-a-number")
	t.Setenv("SYLLABUS_LOG_LEVEL", "debug")
	t.Setenv("SYLLABUS_JOB_SEGMENTS", " jobs , , uploads ")

	cfg := Load()

	assert.Equal(t, "https://api.example.com/v1", cfg.ServerURL)
	assert.Equal(t, "wss://api.example.com/v1/realtime", cfg.RealtimeURL)
	assert.Equal(t, 5, cfg.ConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.ConnectDelay)
	assert.Equal(t, 15, cfg.ReconnectAttempts)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"jobs", "uploads"}, cfg.JobSegments)
}

func TestRealtimeURLFor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:8585", "ws://localhost:8585/realtime"},
		{"https://example.com", "wss://example.com/realtime"},
		{"https://example.com/api/", "wss://example.com/api/realtime"},
		{"::not a url", "ws://localhost:8585/realtime"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RealtimeURLFor(tt.in), tt.in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("job submitted", "channel_id", "abc")

	assert.Contains(t, stderr.String(), "job submitted")
	assert.NotContains(t, stderr.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &rec))
	assert.Equal(t, "abc", rec["channel_id"])
}

func TestSetupLoggerQuietWritesFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syllabus.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo, true)
	logger.Info("quiet line")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "quiet line"))
}

func TestSetupLoggerUnwritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "syllabus.log")

	t.Run("quiet stays off the terminal", func(t *testing.T) {
		var stderr bytes.Buffer
		logger, cleanup := setupLogger(&stderr, path, slog.LevelDebug, true)
		require.NoError(t, cleanup())
		assert.Contains(t, stderr.String(), "logging disabled")

		stderr.Reset()
		logger.Error("during job")
		assert.Empty(t, stderr.String())
	})

	t.Run("loud falls back to stderr", func(t *testing.T) {
		var stderr bytes.Buffer
		logger, cleanup := setupLogger(&stderr, path, slog.LevelDebug, false)
		require.NoError(t, cleanup())

		logger.Info("after fallback")
		assert.Contains(t, stderr.String(), "after fallback")
	})
}
