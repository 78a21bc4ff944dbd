package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/metrics"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWindowWorkers bounds how many dates of the two-week window resolve at once.
	DefaultWindowWorkers = 4
	// DefaultProgressLimit is the number of points ExerciseProgress returns when no limit is given.
	DefaultProgressLimit = 10

	defaultTargetSets = 4
	defaultTargetReps = 12

	maintenanceModeFlag = "maintenance_mode"
)

// Service schedules and records training sessions of the authenticated user.
type Service struct {
	repo          *repository
	db            *sqlite.Database
	logger        *slog.Logger
	metrics       *metrics.Manager
	tracer        trace.Tracer
	now           func() time.Time
	windowWorkers int
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records the service metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock sets the clock that decides which day is today.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWindowWorkers bounds the concurrency of ResolveWindow. Values below 1 are ignored.
func WithWindowWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.windowWorkers = n
		}
	}
}

// WithTracer sets the tracer of the service spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a new training service.
func NewService(db *sqlite.Database, logger *slog.Logger, opts ...Option) *Service {
	factory := newRepositoryFactory(db, logger)
	s := &Service{
		repo:          factory.newRepository(),
		db:            db,
		logger:        logger,
		metrics:       nil,
		tracer:        otel.Tracer("github.com/shamoevthomas/forceapp/internal/training"),
		now:           time.Now,
		windowWorkers: DefaultWindowWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewManager("forceapp", "training", prometheus.NewRegistry())
	}
	return s
}

func (s *Service) today() time.Time {
	return calendar.Day(s.now())
}

// ResolveSession decides what the session screen shows for date.
//
// A user without an active program gets StateNoActiveProgram and no error.
func (s *Service) ResolveSession(ctx context.Context, date time.Time) (ResolvedSession, error) {
	date = calendar.Day(date)
	ctx, span := s.tracer.Start(ctx, "training.ResolveSession",
		trace.WithAttributes(attribute.String("session.date", calendar.ISODay(date))))
	defer span.End()

	program, err := s.repo.programs.Active(ctx)
	if errors.Is(err, ErrNoActiveProgram) {
		s.metrics.CounterSessionsResolved.WithLabelValues(string(StateNoActiveProgram)).Inc()
		return ResolvedSession{Date: date, State: StateNoActiveProgram, Day: nil, Log: nil, Exercises: nil}, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ResolvedSession{}, fmt.Errorf("get active program: %w", err)
	}

	resolved, err := s.resolve(ctx, program, date)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ResolvedSession{}, err
	}
	span.SetAttributes(attribute.String("session.state", string(resolved.State)))
	return resolved, nil
}

// resolve loads the logs the resolver needs for date and runs it.
func (s *Service) resolve(ctx context.Context, program Program, date time.Time) (ResolvedSession, error) {
	var existing, prior *WorkoutLog
	if day, ok := ScheduledDay(date, program.Days); ok && !day.RestDay {
		log, err := s.repo.logs.Get(ctx, date, day.ID)
		switch {
		case err == nil:
			existing = &log
		case !errors.Is(err, ErrNotFound):
			return ResolvedSession{}, fmt.Errorf("get log %s: %w", calendar.ISODay(date), err)
		}

		if existing == nil {
			log, err = s.repo.logs.MostRecentCompleted(ctx, day.ID, date)
			switch {
			case err == nil:
				prior = &log
			case !errors.Is(err, ErrNotFound):
				return ResolvedSession{}, fmt.Errorf("get prior log of %s: %w", calendar.ISODay(date), err)
			}
		}
	}

	resolved := ResolveSession(date, program.Days, existing, prior)
	s.metrics.CounterSessionsResolved.WithLabelValues(string(resolved.State)).Inc()
	for _, ex := range resolved.Exercises {
		if ex.Source != SourceProgression || len(ex.Sets) == 0 || ex.Sets[0].WeightKg == nil {
			continue
		}
		if *ex.Sets[0].WeightKg > ex.Exercise.CurrentWeightKg {
			s.metrics.CounterWeightAdvances.Inc()
		}
	}
	return resolved, nil
}

// ResolveWindow summarises the two-week window starting on the Monday of week.
//
// Dates are resolved concurrently. The result always has one entry per date in chronological order.
func (s *Service) ResolveWindow(ctx context.Context, week, year int) ([]DaySummary, error) {
	ctx, span := s.tracer.Start(ctx, "training.ResolveWindow",
		trace.WithAttributes(attribute.Int("window.week", week), attribute.Int("window.year", year)))
	defer span.End()

	dates := calendar.TwoWeekWindow(week, year)
	summaries := make([]DaySummary, len(dates))

	program, err := s.repo.programs.Active(ctx)
	if errors.Is(err, ErrNoActiveProgram) {
		for i, date := range dates {
			summaries[i] = DaySummary{
				Date:      date,
				Weekday:   calendar.WeekdayOrdinal(date),
				Label:     "",
				State:     StateNoActiveProgram,
				Completed: false,
				Skipped:   false,
			}
		}
		return summaries, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get active program: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.windowWorkers)
	for i, date := range dates {
		g.Go(func() error {
			resolved, resolveErr := s.resolve(gctx, program, date)
			if resolveErr != nil {
				return resolveErr
			}
			summaries[i] = summarise(resolved)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("resolve window %d/%d: %w", year, week, err)
	}
	return summaries, nil
}

func summarise(resolved ResolvedSession) DaySummary {
	summary := DaySummary{
		Date:      resolved.Date,
		Weekday:   calendar.WeekdayOrdinal(resolved.Date),
		Label:     "",
		State:     resolved.State,
		Completed: false,
		Skipped:   false,
	}
	if resolved.Day != nil {
		summary.Label = resolved.Day.Label
	}
	if resolved.Log != nil {
		summary.Completed = resolved.Log.Completed
		summary.Skipped = resolved.Log.Skipped
	}
	return summary
}

// CommitSession saves or skips the session on req.Date.
//
// The log, its sets and the weight updates are stored atomically. Streak and grade are recomputed afterwards. Storage
// failures are returned as *CommitError.
func (s *Service) CommitSession(ctx context.Context, req CommitRequest) (_ CommitResult, err error) {
	start := time.Now()
	req.Date = calendar.Day(req.Date)
	ctx, span := s.tracer.Start(ctx, "training.CommitSession", trace.WithAttributes(
		attribute.String("session.date", calendar.ISODay(req.Date)),
		attribute.Bool("session.skipped", req.Skipped),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.metrics.CounterCommits.WithLabelValues(metrics.OutcomeFailed).Inc()
		}
	}()

	program, err := s.repo.programs.Active(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("get active program: %w", err)
	}
	day, ok := ScheduledDay(req.Date, program.Days)
	if !ok || day.RestDay {
		return CommitResult{}, fmt.Errorf("commit %s: %w", calendar.ISODay(req.Date), ErrRestDay)
	}

	plan, err := PlanCommit(day, req)
	if err != nil {
		return CommitResult{}, err
	}

	log, err := s.repo.logs.Commit(ctx, plan)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "session commit failed",
			slog.String("date", calendar.ISODay(req.Date)), slog.Any("error", err))
		return CommitResult{}, err
	}

	result := CommitResult{Log: log, WeightUpdates: plan.WeightUpdates, StreakDays: 0, Grade: ""}
	if result.StreakDays, err = s.repo.aggregates.RecomputeStreak(ctx, s.today()); err != nil {
		return CommitResult{}, &CommitError{Step: StepAggregates, Date: req.Date, Err: err}
	}
	if result.Grade, err = s.repo.aggregates.RecomputeGrade(ctx); err != nil {
		return CommitResult{}, &CommitError{Step: StepAggregates, Date: req.Date, Err: err}
	}

	outcome := metrics.OutcomeSaved
	if req.Skipped {
		outcome = metrics.OutcomeSkipped
	}
	s.metrics.CounterCommits.WithLabelValues(outcome).Inc()
	for _, u := range plan.WeightUpdates {
		if ex, found := day.Exercise(u.ExerciseID); found && ex.CurrentWeightKg != u.WeightKg {
			s.metrics.CounterWeightSyncs.Inc()
		}
	}
	s.metrics.HistogramCommitDuration.Observe(time.Since(start).Seconds())
	s.logger.LogAttrs(ctx, slog.LevelDebug, "session committed",
		slog.String("date", calendar.ISODay(req.Date)),
		slog.String("outcome", outcome),
		slog.Int("sets", len(log.Sets)),
		slog.Int("weight_updates", len(plan.WeightUpdates)))
	return result, nil
}

// ActiveProgram returns the active program or ErrNoActiveProgram.
func (s *Service) ActiveProgram(ctx context.Context) (Program, error) {
	program, err := s.repo.programs.Active(ctx)
	if err != nil {
		return Program{}, fmt.Errorf("get active program: %w", err)
	}
	return program, nil
}

// ListPrograms returns every program of the user without days.
func (s *Service) ListPrograms(ctx context.Context) ([]Program, error) {
	programs, err := s.repo.programs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// CreateProgram validates draft, stores it and makes it the active program.
func (s *Service) CreateProgram(ctx context.Context, draft ProgramDraft) (Program, error) {
	program, err := buildProgram(draft)
	if err != nil {
		return Program{}, err
	}
	if err = s.repo.programs.Create(ctx, program); err != nil {
		return Program{}, fmt.Errorf("create program: %w", err)
	}
	// The streak depends on the schedule.
	if _, err = s.repo.aggregates.RecomputeStreak(ctx, s.today()); err != nil {
		return Program{}, fmt.Errorf("recompute streak: %w", err)
	}
	return program, nil
}

// buildProgram validates a draft and assigns ids and defaults.
func buildProgram(draft ProgramDraft) (Program, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidProgram, fmt.Sprintf(format, args...))
	}

	name := strings.TrimSpace(draft.Name)
	if name == "" || len(name) > 200 { //nolint:mnd // matches the schema.
		return Program{}, invalid("name must be 1 to 200 characters")
	}
	if len(draft.Days) == 0 {
		return Program{}, invalid("at least one day is required")
	}

	program := Program{ID: uuid.NewString(), Name: name, Active: true, Days: make([]ProgramDay, 0, len(draft.Days))}
	seen := make(map[int]bool, len(draft.Days))
	for _, dd := range draft.Days {
		if dd.Weekday < 1 || dd.Weekday > 7 {
			return Program{}, invalid("weekday %d is not between 1 and 7", dd.Weekday)
		}
		if seen[dd.Weekday] {
			return Program{}, invalid("weekday %d appears twice", dd.Weekday)
		}
		seen[dd.Weekday] = true
		if len(dd.Label) > 100 { //nolint:mnd // matches the schema.
			return Program{}, invalid("label of weekday %d is longer than 100 characters", dd.Weekday)
		}
		if dd.RestDay && len(dd.Exercises) > 0 {
			return Program{}, invalid("rest day %d has exercises", dd.Weekday)
		}

		day := ProgramDay{
			ID:        uuid.NewString(),
			ProgramID: program.ID,
			Weekday:   dd.Weekday,
			Label:     strings.TrimSpace(dd.Label),
			RestDay:   dd.RestDay,
			Exercises: make([]Exercise, 0, len(dd.Exercises)),
		}
		for i, ed := range dd.Exercises {
			ex, err := buildExercise(day.ID, i, ed)
			if err != nil {
				return Program{}, invalid("weekday %d exercise %d: %v", dd.Weekday, i+1, err)
			}
			day.Exercises = append(day.Exercises, ex)
		}
		program.Days = append(program.Days, day)
	}
	return program, nil
}

func buildExercise(dayID string, index int, ed ExerciseDraft) (Exercise, error) {
	ex := Exercise{
		ID:              uuid.NewString(),
		ProgramDayID:    dayID,
		Name:            strings.TrimSpace(ed.Name),
		TargetSets:      ed.TargetSets,
		TargetReps:      ed.TargetReps,
		CurrentWeightKg: ed.CurrentWeightKg,
		Increment:       ed.Increment,
		SortOrder:       index,
	}
	if ex.Name == "" || len(ex.Name) > 200 { //nolint:mnd // matches the schema.
		return Exercise{}, errors.New("name must be 1 to 200 characters")
	}
	if ex.TargetSets == 0 {
		ex.TargetSets = defaultTargetSets
	}
	if ex.TargetReps == 0 {
		ex.TargetReps = defaultTargetReps
	}
	if ex.TargetSets < 0 || ex.TargetReps < 0 {
		return Exercise{}, errors.New("sets and reps must be positive")
	}
	if math.IsNaN(ex.CurrentWeightKg) || math.IsInf(ex.CurrentWeightKg, 0) || ex.CurrentWeightKg < 0 {
		return Exercise{}, fmt.Errorf("weight %v must be a non-negative number", ex.CurrentWeightKg)
	}
	if ex.Increment == 0 {
		ex.Increment = progression.DefaultIncrement
	}
	if !ex.Increment.Valid() {
		return Exercise{}, fmt.Errorf("%w: %d steps", progression.ErrInvalidIncrement, int(ex.Increment))
	}
	return ex, nil
}

// Stats returns the stored aggregates of the user.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.aggregates.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// VolumeHistory returns the volume of every completed session, oldest first.
func (s *Service) VolumeHistory(ctx context.Context) ([]VolumePoint, error) {
	points, err := s.repo.aggregates.VolumeHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("get volume history: %w", err)
	}
	return points, nil
}

// ExerciseProgress returns the heaviest set of an exercise for its latest limit sessions, oldest first. A limit
// below 1 means DefaultProgressLimit.
func (s *Service) ExerciseProgress(ctx context.Context, exerciseID string, limit int) ([]ProgressPoint, error) {
	if limit < 1 {
		limit = DefaultProgressLimit
	}
	points, err := s.repo.aggregates.ExerciseProgress(ctx, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("get progress of exercise %s: %w", exerciseID, err)
	}
	return points, nil
}

// ResetHistory deletes every workout log of the user and zeroes the aggregates. Programs and weights are kept.
func (s *Service) ResetHistory(ctx context.Context) error {
	if err := s.repo.logs.ResetHistory(ctx); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "history reset")
	return nil
}

// CreateUser registers a user and returns its id.
func (s *Service) CreateUser(ctx context.Context, displayName string) (int, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return 0, fmt.Errorf("%w: display name is required", ErrInvalidUser)
	}
	id, err := s.repo.users.Create(ctx, displayName)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// UserExists reports whether a user id is registered.
func (s *Service) UserExists(ctx context.Context, id int) (bool, error) {
	exists, err := s.repo.users.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check user %d: %w", id, err)
	}
	return exists, nil
}

// IsMaintenanceModeEnabled reports whether the maintenance_mode feature flag is on.
func (s *Service) IsMaintenanceModeEnabled(ctx context.Context) (bool, error) {
	enabled, err := s.db.FeatureFlag(ctx, maintenanceModeFlag)
	if err != nil {
		return false, fmt.Errorf("get maintenance mode flag: %w", err)
	}
	return enabled, nil
}
