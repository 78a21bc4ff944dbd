// Package flightrecorder keeps a rolling execution trace and writes it to disk when a request is too slow.
package flightrecorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"
)

const (
	defaultMinAge   = 2 * time.Minute
	defaultMaxBytes = 32 << 20
	defaultCooldown = 15 * time.Minute
)

// Recorder dumps the flight recorder buffer into a directory, at most once per cooldown.
type Recorder struct {
	logger      *slog.Logger
	recorder    *trace.FlightRecorder
	directory   string
	cooldown    time.Duration
	now         func() time.Time
	lastCapture atomic.Int64
}

// Config configures a Recorder. Zero durations and sizes take defaults.
type Config struct {
	Logger    *slog.Logger
	Directory string
	MinAge    time.Duration
	MaxBytes  uint64
	Cooldown  time.Duration
	// Now is the clock deciding the cooldown and file names. Defaults to time.Now.
	Now func() time.Time
}

// New creates the trace directory if needed. The recorder does not run until Start.
func New(cfg Config) (*Recorder, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Directory == "" {
		return nil, errors.New("traces directory is required")
	}
	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil { //nolint:mnd // owner only
		return nil, fmt.Errorf("create traces directory: %w", err)
	}

	r := &Recorder{
		logger: cfg.Logger,
		recorder: trace.NewFlightRecorder(trace.FlightRecorderConfig{
			MinAge:   orDefault(cfg.MinAge, defaultMinAge),
			MaxBytes: orDefault(cfg.MaxBytes, defaultMaxBytes),
		}),
		directory:   cfg.Directory,
		cooldown:    orDefault(cfg.Cooldown, defaultCooldown),
		now:         cfg.Now,
		lastCapture: atomic.Int64{},
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

func orDefault[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started", slog.String("directory", r.directory))
	return nil
}

func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the buffered trace to a file named after reason and returns its path.
//
// It returns an empty path when a capture happened within the cooldown or the recorder is not running.
func (r *Recorder) Capture(ctx context.Context, reason string) (string, error) {
	if !r.recorder.Enabled() {
		return "", nil
	}
	now := r.now()
	last := r.lastCapture.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skip trace capture during cooldown", slog.String("reason", reason))
		return "", nil
	}
	if !r.lastCapture.CompareAndSwap(last, now.UnixNano()) {
		return "", nil
	}

	path := filepath.Join(r.directory, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}
	n, err := r.recorder.WriteTo(file)
	if err = errors.Join(err, file.Close()); err != nil {
		return "", fmt.Errorf("write trace file: %w", err)
	}

	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("reason", reason), slog.String("file", path), slog.Int64("bytes", n))
	return path, nil
}
