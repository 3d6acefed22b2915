// Package log sets up the rover's structured logger. Logs go to stderr so
// command output on stdout (rover scan --json) stays machine-readable.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level  = new(slog.LevelVar)
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps a level name to a slog.Level.
// Valid levels: "debug", "info", "warn", "error". Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Init sets the log level, installing the process logger on first use.
// Later calls only change the level.
func Init(name string) {
	level.Set(ParseLevel(name))
	once.Do(install)
}

func install() {
	// JSON when shipping logs off the robot, text on a terminal
	logger = newLogger(os.Stderr, level, os.Getenv("GO_ENV") == "production")
	slog.SetDefault(logger)
}

func newLogger(w io.Writer, lvl slog.Leveler, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// L returns the process logger. Without a prior Init the level comes from
// ROVER_LOG_LEVEL.
func L() *slog.Logger {
	once.Do(func() {
		level.Set(ParseLevel(os.Getenv("ROVER_LOG_LEVEL")))
		install()
	})
	return logger
}

// Enabled reports whether the process logger emits lvl.
func Enabled(lvl slog.Level) bool {
	return L().Enabled(context.Background(), lvl)
}

// Component returns the process logger tagged with a component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
