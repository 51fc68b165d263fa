package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger creates a standalone JSON logger writing to w.
// It is meant for tests and for code that runs before the central logger exists.
func NewSlogLogger(w io.Writer, level LogLevel, timezone *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if timezone == nil {
		timezone = time.UTC
	}

	lvl := parseSlogLevel(level)
	return &moduleLogger{
		logger:   slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		level:    lvl,
		timezone: timezone,
	}
}

// NewConsoleLogger creates a human-readable stdout logger for bootstrap code
func NewConsoleLogger(module string, level LogLevel) Logger {
	lvl := parseSlogLevel(level)
	return &moduleLogger{
		module:   module,
		logger:   slog.New(newTextHandler(os.Stdout, lvl, time.Local)),
		level:    lvl,
		timezone: time.Local,
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}
