package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shamoevthomas/forceapp/internal/e2etest"
	"github.com/shamoevthomas/forceapp/internal/logging"
	"github.com/shamoevthomas/forceapp/internal/testhelpers"
	"github.com/shamoevthomas/forceapp/internal/views"
)

// probeSession signs in a throwaway user and reads today's session and the stats.
func probeSession(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if _, err := client.SignIn(ctx, "smoketest"); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	var session views.Session
	today := time.Now().Format(time.DateOnly)
	if err := client.Get(ctx, "/api/sessions/"+today, &session); err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session.State != "NO_ACTIVE_PROGRAM" {
		return fmt.Errorf("fresh user has session state %s", session.State)
	}

	var stats views.Stats
	if err := client.Get(ctx, "/api/stats", &stats); err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	if err := client.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		client   *e2etest.Client
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err = probeSession(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error probing session", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful", slog.Duration("duration", time.Since(start)))
}
