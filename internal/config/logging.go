package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// With quiet set, the stderr handler is omitted; the progress UI owns the
// terminal while a job runs.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level, quiet bool) (*slog.Logger, func() error) {
	return setupLogger(os.Stderr, logFile, level, quiet)
}

func setupLogger(stderr io.Writer, logFile string, level slog.Level, quiet bool) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	})
	noop := func() error { return nil }

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if quiet {
			// One line before the UI starts, then nothing.
			slog.New(stderrHandler).Error("failed to open log file, logging disabled", "error", err, "file", logFile)
			return Discard(), noop
		}
		// Fall back to stderr-only if file fails
		slog.New(stderrHandler).Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), noop
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	cleanup := func() error {
		return file.Close()
	}

	if quiet {
		return slog.New(fileHandler), cleanup
	}
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), cleanup
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
