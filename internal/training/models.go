// Package training schedules progressive overload sessions against a user's active program.
//
// A program assigns program days to weekdays. For a calendar date the service resolves which day is scheduled and what
// sets to pre-fill, and it commits what the user entered, keeping each exercise's working weight in sync.
package training

import (
	"cmp"
	"slices"
	"time"

	"github.com/shamoevthomas/forceapp/internal/progression"
)

// Program is a user's weekly training plan. At most one program per user is active.
type Program struct {
	ID     string
	Name   string
	Active bool
	// Days are ordered by weekday.
	Days []ProgramDay
}

// ProgramDay is the session scheduled on one weekday of a program.
type ProgramDay struct {
	ID        string
	ProgramID string
	// Weekday is 1 for Monday through 7 for Sunday.
	Weekday int
	Label   string
	RestDay bool
	// Exercises are ordered by SortOrder.
	Exercises []Exercise
}

// Exercise is a movement prescribed on a program day.
type Exercise struct {
	ID              string
	ProgramDayID    string
	Name            string
	TargetSets      int
	TargetReps      int
	CurrentWeightKg float64
	Increment       progression.Increment
	SortOrder       int
}

// Target returns the prescription used by the progression rules.
func (e Exercise) Target() progression.Target {
	return progression.Target{
		Sets:      e.TargetSets,
		Reps:      e.TargetReps,
		WeightKg:  e.CurrentWeightKg,
		Increment: e.Increment,
	}
}

// Exercise looks up an exercise of the day by id.
func (d ProgramDay) Exercise(id string) (Exercise, bool) {
	for _, ex := range d.Exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return Exercise{}, false
}

// WorkoutLog is the attempt of a program day on a calendar date.
type WorkoutLog struct {
	ID           string
	ProgramDayID string
	Date         time.Time
	Completed    bool
	Skipped      bool
	Sets         []WorkoutSet
}

// SetsFor returns the log's sets of an exercise ordered by set number.
func (l WorkoutLog) SetsFor(exerciseID string) []WorkoutSet {
	var sets []WorkoutSet
	for _, s := range l.Sets {
		if s.ExerciseID == exerciseID {
			sets = append(sets, s)
		}
	}
	slices.SortStableFunc(sets, func(a, b WorkoutSet) int {
		return cmp.Compare(a.SetNumber, b.SetNumber)
	})
	return sets
}

// WorkoutSet is a performed set. SetNumber starts at 1 for each exercise of a log.
type WorkoutSet struct {
	ExerciseID string
	SetNumber  int
	WeightKg   float64
	Reps       int
	IsAMRAP    bool
}

func (s WorkoutSet) performed() progression.Performed {
	return progression.Performed{WeightKg: s.WeightKg, Reps: s.Reps}
}

// SessionState classifies a calendar date. It is derived on every resolution and never stored.
type SessionState string

const (
	StateNoActiveProgram     SessionState = "NO_ACTIVE_PROGRAM"
	StateRestDay             SessionState = "REST_DAY"
	StateUnloggedFirstTime   SessionState = "UNLOGGED_FIRST_TIME"
	StateUnloggedWithHistory SessionState = "UNLOGGED_WITH_HISTORY"
	StateAlreadyLogged       SessionState = "ALREADY_LOGGED"
)

// SetSource tells where the initial sets of an exercise came from.
type SetSource string

const (
	SourceLogged      SetSource = "logged"
	SourceProgression SetSource = "progression"
	SourceDefault     SetSource = "default"
)

// ResolvedExercise is an exercise with the sets to show for a date.
type ResolvedExercise struct {
	Exercise Exercise
	Sets     []progression.Entry
	Source   SetSource
}

// ResolvedSession is what the session screen shows for a date.
type ResolvedSession struct {
	Date  time.Time
	State SessionState
	// Day is nil when no program day is scheduled on the date's weekday.
	Day *ProgramDay
	// Log is the existing log of the date, if any.
	Log       *WorkoutLog
	Exercises []ResolvedExercise
}

// ExerciseEntries are the sets entered for one exercise, in the order performed.
type ExerciseEntries struct {
	ExerciseID string              `json:"exercise_id"`
	Sets       []progression.Entry `json:"sets"`
}

// CommitRequest is a save or skip of the session on Date.
type CommitRequest struct {
	Date      time.Time
	Skipped   bool
	Exercises []ExerciseEntries
}

// WeightUpdate sets an exercise's stored working weight.
type WeightUpdate struct {
	ExerciseID string
	WeightKg   float64
}

// CommitResult reports a successful commit.
type CommitResult struct {
	Log           WorkoutLog
	WeightUpdates []WeightUpdate
	StreakDays    int
	Grade         string
}

// Stats are the derived aggregates of a user.
type Stats struct {
	StreakDays    int
	Grade         string
	TotalVolumeKg float64
	// NextGrade is empty at the top tier.
	NextGrade         string
	NextGradeVolumeKg float64
}

// VolumePoint is the volume, sum of weight times reps, of a completed log.
type VolumePoint struct {
	Date     time.Time
	VolumeKg float64
}

// ProgressPoint is the heaviest set of an exercise on a date.
type ProgressPoint struct {
	Date        time.Time
	MaxWeightKg float64
}

// DaySummary is one date of the two-week overview.
type DaySummary struct {
	Date      time.Time
	Weekday   int
	Label     string
	State     SessionState
	Completed bool
	Skipped   bool
}

// ProgramDraft describes a new program. Zero exercise fields take defaults.
type ProgramDraft struct {
	Name string     `json:"name" yaml:"name"`
	Days []DayDraft `json:"days" yaml:"days"`
}

// DayDraft describes a program day.
type DayDraft struct {
	Weekday   int             `json:"weekday" yaml:"weekday"`
	Label     string          `json:"label" yaml:"label"`
	RestDay   bool            `json:"rest_day" yaml:"rest_day"`
	Exercises []ExerciseDraft `json:"exercises" yaml:"exercises"`
}

// ExerciseDraft describes an exercise of a program day.
type ExerciseDraft struct {
	Name            string                `json:"name" yaml:"name"`
	TargetSets      int                   `json:"target_sets" yaml:"target_sets"`
	TargetReps      int                   `json:"target_reps" yaml:"target_reps"`
	CurrentWeightKg float64               `json:"current_weight_kg" yaml:"current_weight_kg"`
	Increment       progression.Increment `json:"increment" yaml:"increment"`
}
