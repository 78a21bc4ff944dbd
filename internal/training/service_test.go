package training_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shamoevthomas/forceapp/internal/contexthelpers"
	"github.com/shamoevthomas/forceapp/internal/metrics"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/ptr"
	"github.com/shamoevthomas/forceapp/internal/sqlite"
	"github.com/shamoevthomas/forceapp/internal/testhelpers"
	"github.com/shamoevthomas/forceapp/internal/training"
	"go.uber.org/goleak"
)

type fixture struct {
	ctx     context.Context
	svc     *training.Service
	db      *sqlite.Database
	metrics *metrics.Manager
}

// newFixture returns a service on a fresh in-memory database, authenticated as a new user. Today is Wednesday
// 2026-10-21.
func newFixture(t *testing.T) fixture {
	t.Helper()

	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	m, _ := metrics.NewTestManagerAndRegistry()
	today := testhelpers.Date(t, "2026-10-21")
	svc := training.NewService(db, logger,
		training.WithMetrics(m),
		training.WithClock(func() time.Time { return today.Add(18 * time.Hour) }),
		training.WithWindowWorkers(3),
	)

	userID, err := svc.CreateUser(t.Context(), "Thomas")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return fixture{ctx: contexthelpers.WithUserID(t.Context(), userID), svc: svc, db: db, metrics: m}
}

func pushPullDraft() training.ProgramDraft {
	return training.ProgramDraft{
		Name: "Push pull",
		Days: []training.DayDraft{
			{
				Weekday: 1,
				Label:   "Push",
				RestDay: false,
				Exercises: []training.ExerciseDraft{
					{Name: "Bench press", TargetSets: 4, TargetReps: 10, CurrentWeightKg: 80, Increment: 0},
					{Name: "Dips", TargetSets: 3, TargetReps: 12, CurrentWeightKg: 0, Increment: 0},
				},
			},
			{
				Weekday: 3,
				Label:   "Pull",
				RestDay: false,
				Exercises: []training.ExerciseDraft{
					{Name: "Barbell row", TargetSets: 3, TargetReps: 8, CurrentWeightKg: 60, Increment: 4},
				},
			},
			{Weekday: 5, Label: "Mobility", RestDay: true, Exercises: nil},
		},
	}
}

func (f fixture) createProgram(t *testing.T) training.Program {
	t.Helper()
	program, err := f.svc.CreateProgram(f.ctx, pushPullDraft())
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	return program
}

func (f fixture) commit(t *testing.T, req training.CommitRequest) training.CommitResult {
	t.Helper()
	result, err := f.svc.CommitSession(f.ctx, req)
	if err != nil {
		t.Fatalf("CommitSession(%s) error = %v", req.Date.Format(time.DateOnly), err)
	}
	return result
}

func (f fixture) currentWeight(t *testing.T, name string) float64 {
	t.Helper()
	program, err := f.svc.ActiveProgram(f.ctx)
	if err != nil {
		t.Fatalf("ActiveProgram() error = %v", err)
	}
	for _, day := range program.Days {
		for _, ex := range day.Exercises {
			if ex.Name == name {
				return ex.CurrentWeightKg
			}
		}
	}
	t.Fatalf("exercise %q not found", name)
	return 0
}

func repeatedSets(weight float64, reps ...int) []progression.Entry {
	entries := make([]progression.Entry, len(reps))
	for i, r := range reps {
		entries[i] = progression.Entry{WeightKg: ptr.Ref(weight), Reps: ptr.Ref(r), IsAMRAP: false}
	}
	return entries
}

func TestService_ResolveSession_noActiveProgram(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, err := f.svc.ResolveSession(f.ctx, testhelpers.Date(t, "2026-10-19"))
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if got.State != training.StateNoActiveProgram {
		t.Errorf("State = %s, want %s", got.State, training.StateNoActiveProgram)
	}

	_, err = f.svc.CommitSession(f.ctx, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-19"),
		Skipped:   true,
		Exercises: nil,
	})
	if !errors.Is(err, training.ErrNoActiveProgram) {
		t.Errorf("CommitSession() error = %v, want ErrNoActiveProgram", err)
	}
}

func TestService_CreateProgram(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.createProgram(t)
	if len(first.Days) != 3 {
		t.Fatalf("created %d days, want 3", len(first.Days))
	}
	bench := first.Days[0].Exercises[0]
	if bench.Increment.Kg() != 2.5 || bench.TargetSets != 4 {
		t.Errorf("bench = %+v, want defaults applied", bench)
	}
	row := first.Days[1].Exercises[0]
	if row.Increment.Kg() != 5 {
		t.Errorf("row increment = %v kg, want 5", row.Increment.Kg())
	}

	second, err := f.svc.CreateProgram(f.ctx, training.ProgramDraft{
		Name: "Full body",
		Days: []training.DayDraft{{Weekday: 2, Label: "", RestDay: false, Exercises: []training.ExerciseDraft{
			{Name: "Squat", TargetSets: 0, TargetReps: 0, CurrentWeightKg: 100, Increment: 0},
		}}},
	})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	squat := second.Days[0].Exercises[0]
	if squat.TargetSets != 4 || squat.TargetReps != 12 {
		t.Errorf("squat target = %dx%d, want the 4x12 default", squat.TargetSets, squat.TargetReps)
	}

	active, err := f.svc.ActiveProgram(f.ctx)
	if err != nil {
		t.Fatalf("ActiveProgram() error = %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active program = %s, want the newest %s", active.ID, second.ID)
	}
	programs, err := f.svc.ListPrograms(f.ctx)
	if err != nil {
		t.Fatalf("ListPrograms() error = %v", err)
	}
	activeCount := 0
	for _, p := range programs {
		if p.Active {
			activeCount++
		}
	}
	if len(programs) != 2 || activeCount != 1 {
		t.Errorf("got %d programs with %d active, want 2 with 1 active", len(programs), activeCount)
	}
}

func TestService_CreateProgram_invalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name  string
		draft training.ProgramDraft
	}{
		{
			name:  "no name",
			draft: training.ProgramDraft{Name: " ", Days: pushPullDraft().Days},
		},
		{
			name:  "no days",
			draft: training.ProgramDraft{Name: "Empty", Days: nil},
		},
		{
			name: "weekday out of range",
			draft: training.ProgramDraft{Name: "Bad", Days: []training.DayDraft{
				{Weekday: 8, Label: "", RestDay: false, Exercises: nil},
			}},
		},
		{
			name: "duplicate weekday",
			draft: training.ProgramDraft{Name: "Bad", Days: []training.DayDraft{
				{Weekday: 2, Label: "", RestDay: false, Exercises: nil},
				{Weekday: 2, Label: "", RestDay: false, Exercises: nil},
			}},
		},
		{
			name: "negative weight",
			draft: training.ProgramDraft{Name: "Bad", Days: []training.DayDraft{
				{Weekday: 2, Label: "", RestDay: false, Exercises: []training.ExerciseDraft{
					{Name: "Squat", TargetSets: 3, TargetReps: 5, CurrentWeightKg: -5, Increment: 0},
				}},
			}},
		},
		{
			name: "invalid increment",
			draft: training.ProgramDraft{Name: "Bad", Days: []training.DayDraft{
				{Weekday: 2, Label: "", RestDay: false, Exercises: []training.ExerciseDraft{
					{Name: "Squat", TargetSets: 3, TargetReps: 5, CurrentWeightKg: 100, Increment: 9},
				}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateProgram(f.ctx, tt.draft); !errors.Is(err, training.ErrInvalidProgram) {
				t.Errorf("CreateProgram() error = %v, want ErrInvalidProgram", err)
			}
		})
	}
	if _, err := f.svc.ActiveProgram(f.ctx); !errors.Is(err, training.ErrNoActiveProgram) {
		t.Errorf("ActiveProgram() error = %v, want no program after invalid drafts", err)
	}
}

func TestService_CommitThenResolve(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]
	monday := testhelpers.Date(t, "2026-10-19")

	entered := []progression.Entry{
		{WeightKg: ptr.Ref(80.0), Reps: ptr.Ref(10), IsAMRAP: false},
		{WeightKg: nil, Reps: nil, IsAMRAP: false},
		{WeightKg: ptr.Ref(80.0), Reps: ptr.Ref(9), IsAMRAP: false},
		{WeightKg: ptr.Ref(77.5), Reps: ptr.Ref(12), IsAMRAP: true},
	}
	result := f.commit(t, training.CommitRequest{
		Date:      monday,
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: entered}},
	})
	if !result.Log.Completed || len(result.Log.Sets) != 3 {
		t.Errorf("committed log = %+v, want completed with 3 sets", result.Log)
	}

	for range 2 {
		resolved, err := f.svc.ResolveSession(f.ctx, monday)
		if err != nil {
			t.Fatalf("ResolveSession() error = %v", err)
		}
		if resolved.State != training.StateAlreadyLogged {
			t.Fatalf("State = %s, want %s", resolved.State, training.StateAlreadyLogged)
		}
		want := []progression.Entry{entered[0], entered[2], entered[3]}
		if diff := cmp.Diff(want, resolved.Exercises[0].Sets); diff != "" {
			t.Errorf("resolved bench sets mismatch (-want +got):\n%s", diff)
		}
		if resolved.Exercises[1].Source != training.SourceDefault {
			t.Errorf("dips source = %s, want default", resolved.Exercises[1].Source)
		}
	}

	// The last valid set is the AMRAP set at 77.5 kg.
	if got := f.currentWeight(t, "Bench press"); got != 77.5 {
		t.Errorf("bench weight = %v, want 77.5", got)
	}
}

func TestService_CommitSession_recommitReplacesSets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]
	monday := testhelpers.Date(t, "2026-10-19")

	first := f.commit(t, training.CommitRequest{
		Date:      monday,
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(80, 10, 10, 10, 10)}},
	})
	second := f.commit(t, training.CommitRequest{
		Date:      monday,
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(80, 8)}},
	})
	if first.Log.ID != second.Log.ID {
		t.Errorf("recommit created log %s, want the existing %s", second.Log.ID, first.Log.ID)
	}

	resolved, err := f.svc.ResolveSession(f.ctx, monday)
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if diff := cmp.Diff(repeatedSets(80, 8), resolved.Exercises[0].Sets); diff != "" {
		t.Errorf("sets after recommit mismatch (-want +got):\n%s", diff)
	}
}

func TestService_progression(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]

	f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-12"),
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(82.5, 10, 10, 10, 10)}},
	})
	if got := f.currentWeight(t, "Bench press"); got != 82.5 {
		t.Fatalf("bench weight after sync = %v, want 82.5", got)
	}

	resolved, err := f.svc.ResolveSession(f.ctx, testhelpers.Date(t, "2026-10-19"))
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if resolved.State != training.StateUnloggedWithHistory {
		t.Fatalf("State = %s, want %s", resolved.State, training.StateUnloggedWithHistory)
	}
	got := resolved.Exercises[0]
	want := progression.PrescribedSets(bench.Target(), 85)
	if got.Source != training.SourceProgression {
		t.Errorf("Source = %s, want progression", got.Source)
	}
	if diff := cmp.Diff(want, got.Sets); diff != "" {
		t.Errorf("prescribed sets mismatch (-want +got):\n%s", diff)
	}
	if advances := testutil.ToFloat64(f.metrics.CounterWeightAdvances); advances != 1 {
		t.Errorf("weight advances = %v, want 1", advances)
	}

	// A missed rep holds the weight.
	f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-19"),
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(85, 10, 10, 9, 10)}},
	})
	resolved, err = f.svc.ResolveSession(f.ctx, testhelpers.Date(t, "2026-10-26"))
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if w := *resolved.Exercises[0].Sets[0].WeightKg; w != 85 {
		t.Errorf("prescribed weight after a missed rep = %v, want 85", w)
	}
}

func TestService_CommitSession_skipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]
	monday := testhelpers.Date(t, "2026-10-19")

	f.commit(t, training.CommitRequest{
		Date:      monday,
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(90, 10)}},
	})
	result := f.commit(t, training.CommitRequest{
		Date:      monday,
		Skipped:   true,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(120, 10)}},
	})
	if result.Log.Completed || !result.Log.Skipped || len(result.Log.Sets) != 0 {
		t.Errorf("skipped log = %+v, want skipped without sets", result.Log)
	}
	if len(result.WeightUpdates) != 0 {
		t.Errorf("skip updated weights: %+v", result.WeightUpdates)
	}
	if got := f.currentWeight(t, "Bench press"); got != 90 {
		t.Errorf("bench weight = %v, want 90 from the earlier save", got)
	}

	resolved, err := f.svc.ResolveSession(f.ctx, monday)
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if resolved.State != training.StateAlreadyLogged || resolved.Exercises[0].Source != training.SourceDefault {
		t.Errorf("resolved = %s/%s, want an already logged day with default sets",
			resolved.State, resolved.Exercises[0].Source)
	}
	if skipped := testutil.ToFloat64(f.metrics.CounterCommits.WithLabelValues(metrics.OutcomeSkipped)); skipped != 1 {
		t.Errorf("skipped commits = %v, want 1", skipped)
	}
}

func TestService_CommitSession_restDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.createProgram(t)

	for _, date := range []string{"2026-10-20", "2026-10-23"} {
		_, err := f.svc.CommitSession(f.ctx, training.CommitRequest{
			Date:      testhelpers.Date(t, date),
			Skipped:   false,
			Exercises: nil,
		})
		if !errors.Is(err, training.ErrRestDay) {
			t.Errorf("CommitSession(%s) error = %v, want ErrRestDay", date, err)
		}
	}
	if failed := testutil.ToFloat64(f.metrics.CounterCommits.WithLabelValues(metrics.OutcomeFailed)); failed != 2 {
		t.Errorf("failed commits = %v, want 2", failed)
	}
}

func TestService_aggregates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]
	row := program.Days[1].Exercises[0]

	f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-14"),
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: row.ID, Sets: repeatedSets(60, 8, 8, 8)}},
	})
	result := f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-19"),
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(150, 10, 10, 10, 10, 10, 10)}},
	})
	if result.StreakDays != 2 {
		t.Errorf("streak = %d, want 2", result.StreakDays)
	}

	stats, err := f.svc.Stats(f.ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := training.Stats{
		StreakDays:        2,
		Grade:             "Crevette",
		TotalVolumeKg:     60*8*3 + 150*10*6,
		NextGrade:         "Costaud",
		NextGradeVolumeKg: 50000,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	volume, err := f.svc.VolumeHistory(f.ctx)
	if err != nil {
		t.Fatalf("VolumeHistory() error = %v", err)
	}
	wantVolume := []training.VolumePoint{
		{Date: testhelpers.Date(t, "2026-10-14"), VolumeKg: 1440},
		{Date: testhelpers.Date(t, "2026-10-19"), VolumeKg: 9000},
	}
	if diff := cmp.Diff(wantVolume, volume); diff != "" {
		t.Errorf("volume history mismatch (-want +got):\n%s", diff)
	}

	progress, err := f.svc.ExerciseProgress(f.ctx, bench.ID, 0)
	if err != nil {
		t.Fatalf("ExerciseProgress() error = %v", err)
	}
	wantProgress := []training.ProgressPoint{{Date: testhelpers.Date(t, "2026-10-19"), MaxWeightKg: 150}}
	if diff := cmp.Diff(wantProgress, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}

	// Skipping today ends the streak.
	result = f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-21"),
		Skipped:   true,
		Exercises: nil,
	})
	if result.StreakDays != 0 {
		t.Errorf("streak after skipping today = %d, want 0", result.StreakDays)
	}

	if err = f.svc.ResetHistory(f.ctx); err != nil {
		t.Fatalf("ResetHistory() error = %v", err)
	}
	stats, err = f.svc.Stats(f.ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.StreakDays != 0 || stats.TotalVolumeKg != 0 || stats.Grade != "Gringalet" {
		t.Errorf("stats after reset = %+v", stats)
	}
	if volume, err = f.svc.VolumeHistory(f.ctx); err != nil || len(volume) != 0 {
		t.Errorf("VolumeHistory() after reset = %v, %v", volume, err)
	}
}

func TestService_ResolveWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	program := f.createProgram(t)
	bench := program.Days[0].Exercises[0]
	f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-19"),
		Skipped:   false,
		Exercises: []training.ExerciseEntries{{ExerciseID: bench.ID, Sets: repeatedSets(80, 10)}},
	})
	f.commit(t, training.CommitRequest{
		Date:      testhelpers.Date(t, "2026-10-21"),
		Skipped:   true,
		Exercises: nil,
	})

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	summaries, err := f.svc.ResolveWindow(f.ctx, 43, 2026)
	if err != nil {
		t.Fatalf("ResolveWindow() error = %v", err)
	}
	if len(summaries) != 14 {
		t.Fatalf("got %d days, want 14", len(summaries))
	}

	wantStates := []training.SessionState{
		training.StateAlreadyLogged, training.StateRestDay, training.StateAlreadyLogged, training.StateRestDay,
		training.StateRestDay, training.StateRestDay, training.StateRestDay,
		training.StateUnloggedWithHistory, training.StateRestDay, training.StateUnloggedFirstTime,
		training.StateRestDay, training.StateRestDay, training.StateRestDay, training.StateRestDay,
	}
	for i, s := range summaries {
		if want := testhelpers.Date(t, "2026-10-19").AddDate(0, 0, i); !s.Date.Equal(want) {
			t.Errorf("day %d date = %s, want %s", i, s.Date.Format(time.DateOnly), want.Format(time.DateOnly))
		}
		if s.Weekday != i%7+1 {
			t.Errorf("day %d weekday = %d", i, s.Weekday)
		}
		if s.State != wantStates[i] {
			t.Errorf("day %d state = %s, want %s", i, s.State, wantStates[i])
		}
	}
	if !summaries[0].Completed || summaries[0].Label != "Push" {
		t.Errorf("monday = %+v, want completed push day", summaries[0])
	}
	if !summaries[2].Skipped {
		t.Errorf("wednesday = %+v, want skipped", summaries[2])
	}
	if summaries[4].Label != "Mobility" {
		t.Errorf("friday label = %q, want the rest day label", summaries[4].Label)
	}
}

func TestService_IsMaintenanceModeEnabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	enabled, err := f.svc.IsMaintenanceModeEnabled(f.ctx)
	if err != nil || enabled {
		t.Fatalf("IsMaintenanceModeEnabled() = %v, %v, want disabled", enabled, err)
	}
	if err = f.db.SetFeatureFlag(f.ctx, "maintenance_mode", true); err != nil {
		t.Fatalf("SetFeatureFlag() error = %v", err)
	}
	if enabled, err = f.svc.IsMaintenanceModeEnabled(f.ctx); err != nil || !enabled {
		t.Errorf("IsMaintenanceModeEnabled() = %v, %v, want enabled", enabled, err)
	}
}
