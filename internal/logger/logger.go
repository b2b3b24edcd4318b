// Package logger configures structured logging and crash capture for
// FeatureWing.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Options selects the default slog handler.
type Options struct {
	Verbose bool
	// Format is "text" or "json". Anything else falls back to text.
	Format string
}

// New builds a logger writing to w. Verbose logs at Debug, otherwise only
// warnings and errors reach the terminal.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h)
}

// Setup installs New(w, opts) as the process default.
func Setup(w io.Writer, opts Options) *slog.Logger {
	l := New(w, opts)
	slog.SetDefault(l)
	return l
}
