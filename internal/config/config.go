// Package config loads client configuration from the environment.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	ServerURL     string
	RealtimeURL   string
	Token         string
	ClientTimeout time.Duration

	// Channel readiness wait before a submission
	ConnectAttempts int
	ConnectDelay    time.Duration

	// Transport-level reconnection of the realtime channel
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Notifications
	ToastDismiss time.Duration

	// Views on which the realtime channel is kept open, and the editor view
	// that renders its own progress.
	JobSegments []string
	EditorPath  string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	serverURL := strings.TrimRight(getEnv("SYLLABUS_SERVER_URL", "http://localhost:8585"), "/")

	return Config{
		ServerURL:     serverURL,
		RealtimeURL:   getEnv("SYLLABUS_REALTIME_URL", RealtimeURLFor(serverURL)),
		Token:         getEnv("SYLLABUS_TOKEN", ""),
		ClientTimeout: getDuration("SYLLABUS_CLIENT_TIMEOUT", 2*time.Minute),

		ConnectAttempts: getInt("SYLLABUS_CONNECT_ATTEMPTS", 3),
		ConnectDelay:    getDuration("SYLLABUS_CONNECT_DELAY", time.Second),

		ReconnectAttempts: getInt("SYLLABUS_RECONNECT_ATTEMPTS", 15),
		ReconnectDelay:    getDuration("SYLLABUS_RECONNECT_DELAY", 2*time.Second),

		ToastDismiss: getDuration("SYLLABUS_TOAST_DISMISS", 5*time.Second),

		JobSegments: splitList(getEnv("SYLLABUS_JOB_SEGMENTS", "generate-content,syllabus")),
		EditorPath:  getEnv("SYLLABUS_EDITOR_PATH", "/syllabus/editor"),

		LogFile:  getEnv("SYLLABUS_LOG_FILE", "/tmp/syllabus.log"),
		LogLevel: parseLogLevel(getEnv("SYLLABUS_LOG_LEVEL", "INFO")),
	}
}

// RealtimeURLFor derives the WebSocket endpoint from the HTTP server URL:
// http(s)://host/base → ws(s)://host/base/realtime.
func RealtimeURLFor(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:8585/realtime"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	return u.String()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
