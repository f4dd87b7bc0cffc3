package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Options selects the log level, an optional file tee and the output format:
// "json" (default), "text", or "auto" for text on a terminal and JSON otherwise.
type Options struct {
	Level  string
	File   string
	Format string
}

// New creates a *slog.Logger writing to stderr and optionally to opts.File.
// It also sets the logger as the slog default so package-level slog calls work.
// The returned cleanup func closes the log file if one was opened; callers must
// defer it.
func New(opts Options) (*slog.Logger, func(), error) {
	return newLogger(os.Stderr, isTerminal(os.Stderr), opts)
}

func newLogger(stderr io.Writer, tty bool, opts Options) (*slog.Logger, func(), error) {
	writers := []io.Writer{stderr}
	cleanup := func() {}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}

	w := io.MultiWriter(writers...)
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	if useText(opts.Format, tty) {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func useText(format string, tty bool) bool {
	switch strings.ToLower(format) {
	case "text":
		return true
	case "auto":
		return tty
	}
	return false
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
