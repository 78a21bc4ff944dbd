// Command stresstest signs in many users against a running server and logs months of training history for each
// of them concurrently.
//
//	stresstest localhost:4000 50
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/e2etest"
	"github.com/shamoevthomas/forceapp/internal/logging"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/ptr"
	"github.com/shamoevthomas/forceapp/internal/testhelpers"
	"github.com/shamoevthomas/forceapp/internal/training"
	"github.com/shamoevthomas/forceapp/internal/views"
	"golang.org/x/sync/errgroup"
)

const (
	expectedArgsCount    = 3
	maxConcurrentUsers   = 20
	historyWeeks         = 26
	userTimeout          = 2 * time.Minute
	successRateThreshold = 95.0
	percentageMultiplier = 100
	missedRepChance      = 0.2
	skipChance           = 0.05
)

// stressProgram trains on Monday and Thursday with Sunday as a flagged rest day.
func stressProgram(name string) training.ProgramDraft {
	exercise := func(name string, weight float64) training.ExerciseDraft {
		return training.ExerciseDraft{
			Name:            name,
			TargetSets:      4,
			TargetReps:      8,
			CurrentWeightKg: weight,
			Increment:       progression.DefaultIncrement,
		}
	}
	return training.ProgramDraft{
		Name: name,
		Days: []training.DayDraft{
			{Weekday: 1, Label: "Upper", RestDay: false, Exercises: []training.ExerciseDraft{
				exercise("Bench press", 60), exercise("Row", 50),
			}},
			{Weekday: 4, Label: "Lower", RestDay: false, Exercises: []training.ExerciseDraft{
				exercise("Squat", 80), exercise("Deadlift", 100),
			}},
			{Weekday: 7, Label: "Recovery", RestDay: true, Exercises: nil},
		},
	}
}

type counters struct {
	commits  atomic.Int64
	failures atomic.Int64
}

// performed turns the prescribed sets into what a fake lifter managed.
func performed(faker *gofakeit.Faker, prescribed []progression.Entry) []progression.Entry {
	sets := make([]progression.Entry, len(prescribed))
	for i, p := range prescribed {
		reps := ptr.Deref(p.Reps, 0)
		if faker.Float64() < missedRepChance {
			reps = max(reps-faker.IntRange(1, 3), 0) //nolint:mnd // up to three missed reps
		}
		sets[i] = progression.Entry{WeightKg: p.WeightKg, Reps: ptr.Ref(reps), IsAMRAP: p.IsAMRAP}
	}
	return sets
}

// simulateUser signs in one user and walks its schedule from historyWeeks ago until today.
func simulateUser(ctx context.Context, url string, index int, c *counters, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, userTimeout)
	defer cancel()

	faker := gofakeit.New(int64(index))
	client, err := e2etest.NewClient(url)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if _, err = client.SignIn(ctx, faker.Name()); err != nil {
		return fmt.Errorf("sign in user %d: %w", index, err)
	}
	if err = client.Do(ctx, http.MethodPost, "/api/programs", stressProgram(faker.AppName()), nil); err != nil {
		return fmt.Errorf("create program: %w", err)
	}

	today := calendar.Today()
	for date := today.AddDate(0, 0, -7*historyWeeks); !date.After(today); date = date.AddDate(0, 0, 1) {
		var session views.Session
		if err = client.Get(ctx, "/api/sessions/"+calendar.ISODay(date), &session); err != nil {
			return fmt.Errorf("resolve %s: %w", calendar.ISODay(date), err)
		}
		if session.State != string(training.StateUnloggedFirstTime) &&
			session.State != string(training.StateUnloggedWithHistory) {
			continue
		}

		skipped := faker.Float64() < skipChance
		exercises := make([]map[string]any, 0, len(session.Exercises))
		for _, ex := range session.Exercises {
			if !skipped {
				exercises = append(exercises, map[string]any{"exercise_id": ex.ID, "sets": performed(faker, ex.Sets)})
			}
		}
		body := map[string]any{"skipped": skipped, "exercises": exercises}
		if err = client.Do(ctx, http.MethodPut, "/api/sessions/"+calendar.ISODay(date), body, nil); err != nil {
			c.failures.Add(1)
			logger.LogAttrs(ctx, slog.LevelWarn, "commit failed",
				slog.Int("user", index), slog.String("date", calendar.ISODay(date)), slog.Any("error", err))
			continue
		}
		c.commits.Add(1)
	}

	var stats views.Stats
	if err = client.Get(ctx, "/api/stats", &stats); err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "user done", slog.Int("user", index),
		slog.String("grade", stats.Grade), slog.Float64("volume_kg", stats.TotalVolumeKg))
	return nil
}

func run(ctx context.Context, logger *slog.Logger, hostname string, users int) error {
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	probe, err := e2etest.NewClient(url)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err = probe.WaitForReady(ctx, "/api/healthy"); err != nil {
		return fmt.Errorf("server not ready: %w", err)
	}

	var (
		c     counters
		start = time.Now()
		g     errgroup.Group
	)
	g.SetLimit(maxConcurrentUsers)
	for i := range users {
		g.Go(func() error {
			return simulateUser(ctx, url, i, &c, logger)
		})
	}
	if err = g.Wait(); err != nil {
		return fmt.Errorf("simulate users: %w", err)
	}

	commits, failures := c.commits.Load(), c.failures.Load()
	successRate := percentageMultiplier * float64(commits) / float64(max(commits+failures, 1))
	logger.LogAttrs(ctx, slog.LevelInfo, "stress test finished",
		slog.Int("users", users),
		slog.Int64("commits", commits),
		slog.Int64("failures", failures),
		slog.Float64("success_rate", successRate),
		slog.Duration("duration", time.Since(start)))
	if successRate < successRateThreshold {
		return fmt.Errorf("success rate %.1f%% below %.1f%%", successRate, successRateThreshold)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname> <users>")
		os.Exit(1)
	}
	users, err := strconv.Atoi(os.Args[2])
	if err != nil || users < 1 {
		logger.LogAttrs(ctx, slog.LevelError, "users must be a positive number", slog.String("users", os.Args[2]))
		os.Exit(1)
	}

	ctx = logging.WithAttrs(ctx, slog.String("hostname", os.Args[1]))
	if err = run(ctx, logger, os.Args[1], users); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "stress test failed", slog.Any("error", err))
		os.Exit(1)
	}
}
