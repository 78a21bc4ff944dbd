package logging

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and optional rotating log file of a binary.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File is written in addition to the console when non-empty.
	File string
	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a text logger writing to console and, if configured, to a size rotated file.
//
// The returned closer flushes and closes the log file and must be called on shutdown.
func NewLogger(console io.Writer, cfg Config) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	var (
		out    = console
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     0,
			LocalTime:  false,
			Compress:   true,
		}
		out = io.MultiWriter(console, rotating)
		closer = rotating
	}

	handler := NewContextHandler(slog.NewTextHandler(out, &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	}))
	return slog.New(handler), closer, nil
}
