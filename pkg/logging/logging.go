// Package logging builds the process wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"icepak/pkg/config"

	"charm.land/log/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger for cfg. Without a log file it writes human readable
// lines to stderr; with one it writes JSON to a rotated file. The returned
// closer releases the file and is never nil.
func New(cfg config.Log, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	if cfg.File == "" {
		h := log.NewWithOptions(stderr, log.Options{
			Level:           log.Level(level),
			ReportTimestamp: true,
		})
		return slog.New(h), nopCloser{}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	h := slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level})
	return slog.New(h), lj, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
