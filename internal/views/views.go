// Package views renders training results as JSON documents for the HTTP API and the MCP tools.
package views

import (
	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/training"
)

// Session is a resolved date with the sets to pre-fill.
type Session struct {
	Date      string     `json:"date"`
	State     string     `json:"state"`
	Weekday   int        `json:"weekday"`
	DayID     string     `json:"program_day_id,omitempty"`
	Label     string     `json:"label,omitempty"`
	Completed bool       `json:"completed"`
	Skipped   bool       `json:"skipped"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is a program exercise, with its sets when it belongs to a session.
type Exercise struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	TargetSets      int                 `json:"target_sets"`
	TargetReps      int                 `json:"target_reps"`
	CurrentWeightKg float64             `json:"current_weight_kg"`
	Increment       string              `json:"increment"`
	Source          string              `json:"source,omitempty"`
	Sets            []progression.Entry `json:"sets,omitempty"`
}

// NewSession renders a resolved session.
func NewSession(s training.ResolvedSession) Session {
	v := Session{
		Date:      calendar.ISODay(s.Date),
		State:     string(s.State),
		Weekday:   calendar.WeekdayOrdinal(s.Date),
		DayID:     "",
		Label:     "",
		Completed: false,
		Skipped:   false,
		Exercises: make([]Exercise, 0, len(s.Exercises)),
	}
	if s.Day != nil {
		v.DayID = s.Day.ID
		v.Label = s.Day.Label
	}
	if s.Log != nil {
		v.Completed = s.Log.Completed
		v.Skipped = s.Log.Skipped
	}
	for _, re := range s.Exercises {
		ex := newExercise(re.Exercise)
		ex.Source = string(re.Source)
		ex.Sets = re.Sets
		v.Exercises = append(v.Exercises, ex)
	}
	return v
}

func newExercise(e training.Exercise) Exercise {
	return Exercise{
		ID:              e.ID,
		Name:            e.Name,
		TargetSets:      e.TargetSets,
		TargetReps:      e.TargetReps,
		CurrentWeightKg: e.CurrentWeightKg,
		Increment:       e.Increment.String(),
		Source:          "",
		Sets:            nil,
	}
}

// Day is one date of the week overview.
type Day struct {
	Date      string `json:"date"`
	Weekday   int    `json:"weekday"`
	Label     string `json:"label,omitempty"`
	State     string `json:"state"`
	Completed bool   `json:"completed"`
	Skipped   bool   `json:"skipped"`
}

// Week is the two-week overview.
type Week struct {
	Year int   `json:"year"`
	Week int   `json:"week"`
	Days []Day `json:"days"`
}

func NewWeek(year, week int, summaries []training.DaySummary) Week {
	v := Week{Year: year, Week: week, Days: make([]Day, len(summaries))}
	for i, s := range summaries {
		v.Days[i] = Day{
			Date:      calendar.ISODay(s.Date),
			Weekday:   s.Weekday,
			Label:     s.Label,
			State:     string(s.State),
			Completed: s.Completed,
			Skipped:   s.Skipped,
		}
	}
	return v
}

// Program is a program with its days ordered by weekday.
type Program struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Active bool         `json:"active"`
	Days   []ProgramDay `json:"days"`
}

// ProgramDay is a scheduled weekday of a program.
type ProgramDay struct {
	ID        string     `json:"id"`
	Weekday   int        `json:"weekday"`
	Label     string     `json:"label,omitempty"`
	RestDay   bool       `json:"rest_day"`
	Exercises []Exercise `json:"exercises"`
}

func NewProgram(p training.Program) Program {
	v := Program{ID: p.ID, Name: p.Name, Active: p.Active, Days: make([]ProgramDay, 0, len(p.Days))}
	for _, d := range p.Days {
		day := ProgramDay{
			ID:        d.ID,
			Weekday:   d.Weekday,
			Label:     d.Label,
			RestDay:   d.RestDay,
			Exercises: make([]Exercise, 0, len(d.Exercises)),
		}
		for _, e := range d.Exercises {
			day.Exercises = append(day.Exercises, newExercise(e))
		}
		v.Days = append(v.Days, day)
	}
	return v
}

// Stats holds the streak, grade and total volume of a user.
type Stats struct {
	StreakDays        int     `json:"streak_days"`
	Grade             string  `json:"grade"`
	TotalVolumeKg     float64 `json:"total_volume_kg"`
	NextGrade         string  `json:"next_grade,omitempty"`
	NextGradeVolumeKg float64 `json:"next_grade_volume_kg,omitempty"`
}

func NewStats(s training.Stats) Stats {
	return Stats(s)
}

// Point is one value of a chart series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func NewVolumeHistory(points []training.VolumePoint) []Point {
	v := make([]Point, len(points))
	for i, p := range points {
		v[i] = Point{Date: calendar.ISODay(p.Date), Value: p.VolumeKg}
	}
	return v
}

func NewProgress(points []training.ProgressPoint) []Point {
	v := make([]Point, len(points))
	for i, p := range points {
		v[i] = Point{Date: calendar.ISODay(p.Date), Value: p.MaxWeightKg}
	}
	return v
}

// CommitResult is the answer to a saved or skipped session.
type CommitResult struct {
	Date          string         `json:"date"`
	Completed     bool           `json:"completed"`
	Skipped       bool           `json:"skipped"`
	Sets          int            `json:"sets"`
	WeightUpdates []WeightUpdate `json:"weight_updates"`
	StreakDays    int            `json:"streak_days"`
	Grade         string         `json:"grade"`
}

// WeightUpdate is a working weight synced by a commit.
type WeightUpdate struct {
	ExerciseID string  `json:"exercise_id"`
	WeightKg   float64 `json:"weight_kg"`
}

func NewCommitResult(r training.CommitResult) CommitResult {
	v := CommitResult{
		Date:          calendar.ISODay(r.Log.Date),
		Completed:     r.Log.Completed,
		Skipped:       r.Log.Skipped,
		Sets:          len(r.Log.Sets),
		WeightUpdates: make([]WeightUpdate, len(r.WeightUpdates)),
		StreakDays:    r.StreakDays,
		Grade:         r.Grade,
	}
	for i, u := range r.WeightUpdates {
		v.WeightUpdates[i] = WeightUpdate(u)
	}
	return v
}
