package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

// L returns the process-wide structured logger. Safe to use before Init is
// called; defaults to slog.Default().
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Init configures the shared slog logger and calls slog.SetDefault so the
// stdlib log package also routes through the same handler.
func Init(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	l := slog.New(h)
	Set(l)
	slog.SetDefault(l)
	return l
}

// Set replaces the shared logger without touching slog's default. Tests use
// it to capture output.
func Set(l *slog.Logger) {
	current.Store(l)
}
