package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mark3labs/mcp-go/server"
	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/envstruct"
	"github.com/shamoevthomas/forceapp/internal/errors"
	"github.com/shamoevthomas/forceapp/internal/logging"
	"github.com/shamoevthomas/forceapp/internal/mcp"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
	"github.com/shamoevthomas/forceapp/internal/training"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type config struct {
	// SqliteURL is the URL to the SQLite database shared with the web server.
	SqliteURL string `env:"FORCEAPP_SQLITE_URL" envDefault:"./forceapp.sqlite3"`
	// UserID is the user whose training log the tools expose.
	UserID int `env:"FORCEAPP_MCP_USER_ID" envDefault:"1"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"FORCEAPP_LOG_LEVEL" envDefault:"info"`
	// LogFile is an optional rotating log file. Logs always go to stderr because stdout carries the protocol.
	LogFile string `env:"FORCEAPP_LOG_FILE" envDefault:""`
	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB int `env:"FORCEAPP_LOG_MAX_SIZE_MB" envDefault:"10"`
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

	var logCloser io.Closer
	logger, logCloser, err = logging.NewLogger(os.Stderr, logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: 3, //nolint:mnd // keep a few rotated files
	})
	if err != nil {
		return errors.Wrap(err, "configure logging")
	}
	defer func() {
		_ = logCloser.Close()
	}()

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		_ = db.Close()
	}()

	service := training.NewService(db, logger)

	exists, err := service.UserExists(ctx, cfg.UserID)
	if err != nil {
		return errors.Wrap(err, "look up user", slog.Int("user_id", cfg.UserID))
	}
	if !exists {
		return errors.New("user does not exist", slog.Int("user_id", cfg.UserID))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "serving mcp over stdio", slog.Int("user_id", cfg.UserID))

	withUser := func(ctx context.Context) context.Context {
		return contexthelpers.WithUserID(ctx, cfg.UserID)
	}
	if err = server.ServeStdio(mcp.New(service, version, logger),
		server.WithStdioContextFunc(withUser),
		server.WithErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "serve stdio")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure serving mcp", errors.SlogError(err))
		os.Exit(1)
	}
}
