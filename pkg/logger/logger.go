package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text logger writing to w (stderr when nil).
// Debug records are only emitted when verbose is set.
func New(verbose bool, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
