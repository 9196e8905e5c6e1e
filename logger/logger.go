// Package logger builds the slog.Logger used across a BlockVote node:
// pterm on the console, optionally mirrored as JSON into a rotating file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/luca-patrignani/blockvote/config"
)

// DefaultFileMaxSizeMB is the rotation size used when none is configured.
const DefaultFileMaxSizeMB = 10

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to console according to cfg. The returned
// closer releases the log file, if any.
func New(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	pl := pterm.DefaultLogger.WithLevel(ptermLevel(level)).WithWriter(console)
	if cfg.Format == "json" {
		pl = pl.WithFormatter(pterm.LogFormatterJSON)
	}
	var handler slog.Handler = pterm.NewSlogHandler(pl)

	if cfg.File == "" {
		return slog.New(handler), nopCloser{}, nil
	}
	maxSize := cfg.FileMaxSizeMB
	if maxSize == 0 {
		maxSize = DefaultFileMaxSizeMB
	}
	file := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  maxSize, // megabytes
		Compress: true,
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(fanout{handler, fileHandler}), file, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case l <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case l <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// fanout sends every record to all handlers that accept its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
