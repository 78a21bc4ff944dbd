// Command programctl manages training programs from YAML files.
//
//	programctl create-user -name Thomas
//	programctl import -user 1 -file push-pull.yaml
//	programctl export -user 1 > push-pull.yaml
//	programctl flag maintenance_mode on
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/envstruct"
	"github.com/shamoevthomas/forceapp/internal/errors"
	"github.com/shamoevthomas/forceapp/internal/logging"
	"github.com/shamoevthomas/forceapp/internal/programfile"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
	"github.com/shamoevthomas/forceapp/internal/training"
)

var errUsage = errors.NewSentinel("usage: programctl create-user|import|export|flag [flags]")

type config struct {
	// SqliteURL is the URL to the SQLite database.
	SqliteURL string `env:"FORCEAPP_SQLITE_URL" envDefault:"./forceapp.sqlite3"`
}

func run(
	ctx context.Context,
	logger *slog.Logger,
	args []string,
	stdout io.Writer,
	lookupEnv func(string) (string, bool),
) error {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if len(args) == 0 {
		return errUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		userID = fs.Int("user", 1, "id of the user owning the program")
		file   = fs.String("file", "", "program YAML file to import")
		name   = fs.String("name", "", "display name of the new user")
	)
	if err := fs.Parse(args[1:]); err != nil {
		return errors.Wrap(err, "parse flags", slog.String("command", args[0]))
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		_ = db.Close()
	}()
	service := training.NewService(db, logger)

	switch args[0] {
	case "create-user":
		var id int
		if id, err = service.CreateUser(ctx, *name); err != nil {
			return errors.Wrap(err, "create user")
		}
		_, err = fmt.Fprintln(stdout, id)
		return err
	case "flag":
		return setFeatureFlag(ctx, logger, db, fs.Args())
	case "import":
		if *file == "" {
			return errors.Wrap(errUsage, "missing -file")
		}
	case "export":
	default:
		return errUsage
	}

	var exists bool
	if exists, err = service.UserExists(ctx, *userID); err != nil {
		return errors.Wrap(err, "look up user", slog.Int("user_id", *userID))
	}
	if !exists {
		return errors.New("user does not exist", slog.Int("user_id", *userID))
	}
	ctx = contexthelpers.WithUserID(ctx, *userID)

	if args[0] == "export" {
		var program training.Program
		if program, err = service.ActiveProgram(ctx); err != nil {
			return errors.Wrap(err, "get active program")
		}
		return programfile.Encode(stdout, program)
	}

	draft, err := programfile.Load(*file)
	if err != nil {
		return errors.Wrap(err, "load program file", slog.String("file", *file))
	}
	program, err := service.CreateProgram(ctx, draft)
	if err != nil {
		return errors.Wrap(err, "create program")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "imported program",
		slog.String("program_id", program.ID), slog.Int("days", len(program.Days)))
	return nil
}

// setFeatureFlag handles "flag <name> on|off".
func setFeatureFlag(ctx context.Context, logger *slog.Logger, db *sqlite.Database, args []string) error {
	if len(args) != 2 { //nolint:mnd // name and state
		return errors.Wrap(errUsage, "flag needs a name and on|off")
	}
	var enabled bool
	switch args[1] {
	case "on":
		enabled = true
	case "off":
	default:
		return errors.Wrap(errUsage, "flag state must be on or off", slog.String("state", args[1]))
	}
	if err := db.SetFeatureFlag(ctx, args[0], enabled); err != nil {
		return errors.Wrap(err, "set feature flag", slog.String("flag", args[0]))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "feature flag set", slog.String("flag", args[0]), slog.Bool("enabled", enabled))
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	})))
	if err := run(ctx, logger, os.Args[1:], os.Stdout, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "programctl failed", errors.SlogError(err))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called above
	}
}
