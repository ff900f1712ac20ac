// Package logging builds the slog loggers used by the btrun commands: human
// readable text on stderr, plus JSON records in a size-rotated file when a
// log file is configured.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options select the sinks and level of a Logger.
type Options struct {
	Level slog.Level
	// Stderr receives text records. Nil disables the text sink.
	Stderr io.Writer
	// File, when set, receives JSON records through a RotatingFileWriter.
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// Logger is a slog.Logger that owns its log file, if any.
type Logger struct {
	*slog.Logger
	file *RotatingFileWriter
}

// New builds a Logger. The caller must Close it.
func New(opts Options) (*Logger, error) {
	var (
		handlers []slog.Handler
		l        Logger
	)
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.Stderr != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Stderr, ho))
	}
	if opts.File != "" {
		w, err := NewRotatingFileWriter(opts.File, opts.MaxSizeMB, opts.MaxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		l.file = w
		handlers = append(handlers, slog.NewJSONHandler(w, ho))
	}

	switch len(handlers) {
	case 0:
		l.Logger = slog.New(slog.DiscardHandler)
	case 1:
		l.Logger = slog.New(handlers[0])
	default:
		l.Logger = slog.New(teeHandler(handlers))
	}
	return &l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel accepts debug, info, warn and error, case-insensitively. The
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// teeHandler sends each record to every handler enabled for its level.
type teeHandler []slog.Handler

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, x := range h {
		if x.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, x := range h {
		if !x.Enabled(ctx, r.Level) {
			continue
		}
		if err := x.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(h))
	for i, x := range h {
		out[i] = x.WithAttrs(attrs)
	}
	return out
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(h))
	for i, x := range h {
		out[i] = x.WithGroup(name)
	}
	return out
}
