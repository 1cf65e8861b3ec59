package util

import (
	"io"
	"log/slog"
	"os"
)

type Logger = *slog.Logger

// NewLogger builds the process logger. Verbosity counts map to slog levels:
// 0 = errors only, 1 = warnings, 2 = info, 3+ = debug.
func NewLogger(verbosity int) *slog.Logger {
	return NewLoggerTo(os.Stderr, verbosity)
}

func NewLoggerTo(w io.Writer, verbosity int) *slog.Logger {
	var level slog.Level
	switch {
	case verbosity <= 0:
		level = slog.LevelError
	case verbosity == 1:
		level = slog.LevelWarn
	case verbosity == 2:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NopLogger discards everything. Handy for tests and optional components.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
