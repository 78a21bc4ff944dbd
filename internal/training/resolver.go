package training

import (
	"time"

	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/progression"
)

// ScheduledDay returns the program day whose weekday matches date.
//
// Weekdays are unique within a program. If that ever breaks the day with the lowest id wins, so the result does not
// depend on the order of days.
func ScheduledDay(date time.Time, days []ProgramDay) (ProgramDay, bool) {
	weekday := calendar.WeekdayOrdinal(date)
	var (
		match ProgramDay
		found bool
	)
	for _, d := range days {
		if d.Weekday != weekday {
			continue
		}
		if !found || d.ID < match.ID {
			match = d
			found = true
		}
	}
	return match, found
}

// ResolveSession decides the state and the initial sets of date.
//
// existing is the log of date for the scheduled day, and prior is the most recent completed log of the scheduled day
// before date. Both may be nil. The function is pure, so resolving the same inputs twice gives the same sets.
func ResolveSession(date time.Time, days []ProgramDay, existing, prior *WorkoutLog) ResolvedSession {
	resolved := ResolvedSession{
		Date:      date,
		State:     StateRestDay,
		Day:       nil,
		Log:       nil,
		Exercises: nil,
	}

	day, ok := ScheduledDay(date, days)
	if !ok {
		return resolved
	}
	resolved.Day = &day
	if day.RestDay {
		return resolved
	}

	resolved.Exercises = make([]ResolvedExercise, 0, len(day.Exercises))
	switch {
	case existing != nil:
		resolved.State = StateAlreadyLogged
		resolved.Log = existing
		for _, ex := range day.Exercises {
			resolved.Exercises = append(resolved.Exercises, fromLog(ex, existing))
		}
	case prior != nil:
		resolved.State = StateUnloggedWithHistory
		for _, ex := range day.Exercises {
			resolved.Exercises = append(resolved.Exercises, fromHistory(ex, prior))
		}
	default:
		resolved.State = StateUnloggedFirstTime
		for _, ex := range day.Exercises {
			resolved.Exercises = append(resolved.Exercises, ResolvedExercise{
				Exercise: ex,
				Sets:     progression.DefaultSets(ex.Target()),
				Source:   SourceDefault,
			})
		}
	}
	return resolved
}

// fromLog shows the logged sets of ex, or its defaults when the log has none for it.
func fromLog(ex Exercise, log *WorkoutLog) ResolvedExercise {
	sets := log.SetsFor(ex.ID)
	if len(sets) == 0 {
		return ResolvedExercise{Exercise: ex, Sets: progression.DefaultSets(ex.Target()), Source: SourceDefault}
	}
	entries := make([]progression.Entry, len(sets))
	for i, s := range sets {
		entries[i] = progression.Entry{WeightKg: &s.WeightKg, Reps: &s.Reps, IsAMRAP: s.IsAMRAP}
	}
	return ResolvedExercise{Exercise: ex, Sets: entries, Source: SourceLogged}
}

// fromHistory prescribes ex from its sets in the prior log.
func fromHistory(ex Exercise, prior *WorkoutLog) ResolvedExercise {
	sets := prior.SetsFor(ex.ID)
	if len(sets) == 0 {
		return ResolvedExercise{Exercise: ex, Sets: progression.DefaultSets(ex.Target()), Source: SourceDefault}
	}
	performed := make([]progression.Performed, len(sets))
	for i, s := range sets {
		performed[i] = s.performed()
	}
	weight := progression.NextWeight(ex.Target(), performed)
	return ResolvedExercise{
		Exercise: ex,
		Sets:     progression.PrescribedSets(ex.Target(), weight),
		Source:   SourceProgression,
	}
}
