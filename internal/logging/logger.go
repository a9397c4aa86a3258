package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewJSONHandler returns the stdout handler shared by Setup and the
// fan-out installed once the database is up.
func NewJSONHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
}

var stderr io.Writer = os.Stderr

// Setup installs a JSON logger on stdout as the default logger.
func Setup(level string) slog.Handler {
	handler := NewJSONHandler(os.Stdout, level)
	slog.SetDefault(slog.New(handler))
	return handler
}
