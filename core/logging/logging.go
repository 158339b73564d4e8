// Package logging builds the gateway's injected slog logger. Handlers wrap a
// sanitizer so patient-identifying values never reach log sinks.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger for the given level and environment. Production logs
// JSON; development logs text. Both are wrapped by the sanitizing handler.
func New(level, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(Sanitize(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
