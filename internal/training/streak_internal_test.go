package training

import (
	"testing"

	"github.com/shamoevthomas/forceapp/internal/testhelpers"
)

func Test_computeStreak(t *testing.T) {
	t.Parallel()

	// Training on Monday and Wednesday, Friday flagged as rest.
	days := []ProgramDay{
		{ID: "mon", ProgramID: "p", Weekday: 1, Label: "", RestDay: false, Exercises: nil},
		{ID: "wed", ProgramID: "p", Weekday: 3, Label: "", RestDay: false, Exercises: nil},
		{ID: "fri", ProgramID: "p", Weekday: 5, Label: "", RestDay: true, Exercises: nil},
	}
	completed := func(date string) WorkoutLog {
		return WorkoutLog{ID: date, ProgramDayID: "", Date: testhelpers.Date(t, date), Completed: true, Skipped: false,
			Sets: nil}
	}
	skipped := func(date string) WorkoutLog {
		return WorkoutLog{ID: date, ProgramDayID: "", Date: testhelpers.Date(t, date), Completed: false, Skipped: true,
			Sets: nil}
	}

	tests := []struct {
		name  string
		today string
		logs  []WorkoutLog
		want  int
	}{
		{
			name:  "no logs",
			today: "2026-10-21",
			logs:  nil,
			want:  0,
		},
		{
			name:  "unscheduled and rest days are neutral",
			today: "2026-10-25",
			logs: []WorkoutLog{
				completed("2026-10-12"), completed("2026-10-14"), completed("2026-10-19"), completed("2026-10-21"),
			},
			want:  4,
		},
		{
			name:  "today not logged yet is neutral",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-14"), completed("2026-10-19")},
			want:  2,
		},
		{
			name:  "today logged counts",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-19"), completed("2026-10-21")},
			want:  2,
		},
		{
			name:  "a skipped day ends the streak",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-12"), skipped("2026-10-14"), completed("2026-10-19")},
			want:  1,
		},
		{
			name:  "skipping today ends the streak",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-19"), skipped("2026-10-21")},
			want:  0,
		},
		{
			name:  "a missed day ends the streak",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-12"), completed("2026-10-19")},
			want:  1,
		},
		{
			name:  "completing an unscheduled day counts",
			today: "2026-10-21",
			logs:  []WorkoutLog{completed("2026-10-18"), completed("2026-10-19")},
			want:  2,
		},
		{
			name:  "completed wins over skipped on the same date",
			today: "2026-10-19",
			logs:  []WorkoutLog{skipped("2026-10-19"), completed("2026-10-19")},
			want:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := computeStreak(days, tt.logs, testhelpers.Date(t, tt.today)); got != tt.want {
				t.Errorf("computeStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}
