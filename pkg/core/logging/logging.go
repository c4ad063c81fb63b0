package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format is "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unknown values resolve to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
