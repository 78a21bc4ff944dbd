package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shamoevthomas/forceapp/internal/envstruct"
	"github.com/shamoevthomas/forceapp/internal/errors"
	"github.com/shamoevthomas/forceapp/internal/flightrecorder"
	"github.com/shamoevthomas/forceapp/internal/logging"
	"github.com/shamoevthomas/forceapp/internal/metrics"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
	"github.com/shamoevthomas/forceapp/internal/training"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	training       *training.Service
	metrics        *metrics.Manager
	registry       *prometheus.Registry
	flightRecorder *flightrecorder.Recorder
	mux            *http.ServeMux
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FORCEAPP_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"FORCEAPP_SQLITE_URL" envDefault:"./forceapp.sqlite3"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"FORCEAPP_LOG_LEVEL" envDefault:"debug"`
	// LogFile is an optional size rotated copy of the log output.
	LogFile string `env:"FORCEAPP_LOG_FILE" envDefault:""`
	// LogMaxSizeMB is the size at which LogFile is rotated.
	LogMaxSizeMB int `env:"FORCEAPP_LOG_MAX_SIZE_MB" envDefault:"50"`
	// WindowWorkers bounds the concurrent date resolutions of the two-week overview.
	WindowWorkers int `env:"FORCEAPP_WINDOW_WORKERS" envDefault:"4"`
	// TracesDir enables the flight recorder. Execution traces of slow requests are written there.
	TracesDir string `env:"FORCEAPP_TRACES_DIR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.LogFile != "" {
		var logCloser io.Closer
		if logger, logCloser, err = withLogFile(logger, cfg); err != nil {
			return errors.Wrap(err, "configure log file", slog.String("file", cfg.LogFile))
		}
		defer func() {
			_ = logCloser.Close()
		}()
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		_ = db.Close()
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct // defaults
		collectors.NewDBStatsCollector(db.ReadWrite, "read_write"),
		collectors.NewDBStatsCollector(db.ReadOnly, "read_only"),
	)
	metricsManager := metrics.NewManager("forceapp", "web", registry)

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite, 24*time.Hour) //nolint:mnd // day
	defer sessionStore.StopCleanup()

	app := application{
		logger:         logger,
		sessionManager: initializeSessionManager(sessionStore),
		training: training.NewService(db, logger,
			training.WithMetrics(metricsManager),
			training.WithWindowWorkers(cfg.WindowWorkers),
		),
		metrics:        metricsManager,
		registry:       registry,
		flightRecorder: nil,
		mux:            nil,
	}

	if cfg.TracesDir != "" {
		if app.flightRecorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:    logger,
			Directory: cfg.TracesDir,
			MinAge:    0,
			MaxBytes:  0,
			Cooldown:  0,
			Now:       nil,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = app.flightRecorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer app.flightRecorder.Stop(context.WithoutCancel(ctx))
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

// withLogFile replaces logger with one that also writes to the rotating file of cfg.
func withLogFile(logger *slog.Logger, cfg config) (*slog.Logger, io.Closer, error) {
	fileLogger, closer, err := logging.NewLogger(os.Stdout, logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: 5, //nolint:mnd // a few days of logs
	})
	if err != nil {
		return logger, nil, err
	}
	return fileLogger, closer, nil
}

func initializeSessionManager(store scs.Store) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = store
	sessionManager.Lifetime = 30 * 24 * time.Hour //nolint:mnd // a month
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
