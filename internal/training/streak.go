package training

import (
	"time"

	"github.com/shamoevthomas/forceapp/internal/calendar"
)

const streakLookbackDays = 366

type dayOutcome int

const (
	outcomeNone dayOutcome = iota
	outcomeSkipped
	outcomeCompleted
)

// outcomesByDay folds logs into one outcome per ISO day. A completed log wins over a skipped one on the same date.
func outcomesByDay(logs []WorkoutLog) map[string]dayOutcome {
	outcomes := make(map[string]dayOutcome, len(logs))
	for _, l := range logs {
		key := calendar.ISODay(l.Date)
		switch {
		case l.Completed:
			outcomes[key] = outcomeCompleted
		case l.Skipped && outcomes[key] == outcomeNone:
			outcomes[key] = outcomeSkipped
		}
	}
	return outcomes
}

// computeStreak counts completed sessions walking back from today.
//
// Dates without a scheduled training day are neutral. A scheduled date that was skipped or not logged ends the
// streak, except today which is still in progress.
func computeStreak(days []ProgramDay, logs []WorkoutLog, today time.Time) int {
	outcomes := outcomesByDay(logs)
	streak := 0
	for i := range streakLookbackDays {
		date := today.AddDate(0, 0, -i)
		outcome := outcomes[calendar.ISODay(date)]
		if outcome == outcomeCompleted {
			streak++
			continue
		}
		day, scheduled := ScheduledDay(date, days)
		if !scheduled || day.RestDay {
			continue
		}
		if i == 0 && outcome == outcomeNone {
			continue
		}
		break
	}
	return streak
}
