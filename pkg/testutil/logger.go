package testutil

import (
	"log/slog"
	"os"
)

// NewLogger returns a logger for tests. Output is suppressed unless DEBUG=1
// (info) or DEBUG=2 (debug).
func NewLogger() *slog.Logger {
	level := slog.LevelError
	switch os.Getenv("DEBUG") {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
