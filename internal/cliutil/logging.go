package cliutil

import (
	"log/slog"
	"os"
)

// NewLogger returns a text-handler slog.Logger writing to stderr. At the
// default level it only emits Info and above; verbose raises that to
// Debug so commands can narrate config derivation and other
// lower-severity detail without cluttering normal output.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
