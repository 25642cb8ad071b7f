// Package log provides the process-wide structured logger for the voice
// pipeline. It wraps slog: text output for development, JSON when
// LOG_FORMAT=json or GO_ENV=production, with per-component child
// loggers keyed on the "component" attribute.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	output io.Writer = os.Stdout
)

// ParseLevel maps a level name onto a slog level. Unknown names fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput redirects logging to w and drops the current logger, so the
// next Init or L rebuilds against the new writer. Tests use this to
// capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	logger = nil
	mu.Unlock()
}

// Init builds the global logger at the given level. Calling it again
// replaces the logger, so a CLI flag can re-level logging after an
// early default was already handed out.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	initLocked(level)
}

func initLocked(level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" || os.Getenv("GO_ENV") == "production" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// L returns the global logger, initializing it at info level on first
// use.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		initLocked("info")
	}
	return logger
}

// Component returns a child logger tagged with a component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
