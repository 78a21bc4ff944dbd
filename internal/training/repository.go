package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
)

// repository contains the repositories of the training aggregates.
type repository struct {
	programs   programRepository
	logs       logRepository
	aggregates aggregateRepository
	users      userRepository
}

// programRepository stores programs with their days and exercises.
type programRepository interface {
	// Active returns the active program of the authenticated user or ErrNoActiveProgram.
	Active(ctx context.Context) (Program, error)
	// Create stores the program and makes it the only active one.
	Create(ctx context.Context, program Program) error
	// List returns the programs of the authenticated user without their days.
	List(ctx context.Context) ([]Program, error)
}

// logRepository stores workout logs and their sets.
type logRepository interface {
	// Get returns the log of programDayID on date or ErrNotFound.
	Get(ctx context.Context, date time.Time, programDayID string) (WorkoutLog, error)
	// MostRecentCompleted returns the latest completed log of programDayID strictly before date or ErrNotFound.
	MostRecentCompleted(ctx context.Context, programDayID string, before time.Time) (WorkoutLog, error)
	// ListBetween returns the logs dated from..to inclusive without their sets.
	ListBetween(ctx context.Context, from, to time.Time) ([]WorkoutLog, error)
	// Commit stores a commit plan atomically and returns the stored log.
	Commit(ctx context.Context, plan CommitPlan) (WorkoutLog, error)
	// ResetHistory removes every log of the authenticated user and zeroes its aggregates atomically.
	ResetHistory(ctx context.Context) error
}

// aggregateRepository maintains the derived per-user aggregates.
type aggregateRepository interface {
	RecomputeStreak(ctx context.Context, today time.Time) (int, error)
	RecomputeGrade(ctx context.Context) (string, error)
	Stats(ctx context.Context) (Stats, error)
	VolumeHistory(ctx context.Context) ([]VolumePoint, error)
	ExerciseProgress(ctx context.Context, exerciseID string, limit int) ([]ProgressPoint, error)
}

// userRepository manages user rows.
type userRepository interface {
	Create(ctx context.Context, displayName string) (int, error)
	Exists(ctx context.Context, id int) (bool, error)
}

// repositoryFactory creates repository instances.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// newRepositoryFactory creates a new repository factory.
func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{
		db:     db,
		logger: logger,
	}
}

// newRepository creates a new repository aggregate.
func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		programs:   newSQLiteProgramRepository(f.db, f.logger),
		logs:       newSQLiteLogRepository(f.db, f.logger),
		aggregates: newSQLiteAggregateRepository(f.db, f.logger),
		users:      newSQLiteUserRepository(f.db, f.logger),
	}
}

// baseRepository holds what every SQLite repository needs.
type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newBaseRepository(db *sqlite.Database, logger *slog.Logger) baseRepository {
	return baseRepository{
		db:     db,
		logger: logger,
	}
}

func formatDate(t time.Time) string {
	return calendar.ISODay(t)
}

func parseDate(s string) (time.Time, error) {
	t, err := calendar.ParseISODay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
