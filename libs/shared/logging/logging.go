package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a structured logger. Format "text" selects the human-readable
// handler; anything else produces JSON.
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup builds a logger for the named service and installs it as the default.
func Setup(service, level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a case-insensitive level name onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops every record. Handy for tests and
// for components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
