package logger

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New returns the process logger. Reports and exports print on stdout, so
// log output goes to stderr.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}))
}
