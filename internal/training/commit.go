package training

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/progression"
)

// CommitPlan is the ordered list of writes of a commit: upsert Log, replace its sets with Sets, then apply
// WeightUpdates. Aggregates are recomputed after the plan is stored.
type CommitPlan struct {
	Log           WorkoutLog
	WeightUpdates []WeightUpdate
}

// PlanCommit turns the entries of a session into a commit plan for the scheduled day.
//
// A skipped session stores a log without sets and leaves every weight alone. Otherwise blank rows are dropped, the
// remaining sets are numbered from 1 per exercise, and each exercise's working weight is synced to its last valid
// performance. Entries are validated before anything is written.
func PlanCommit(day ProgramDay, req CommitRequest) (CommitPlan, error) {
	plan := CommitPlan{
		Log: WorkoutLog{
			ID:           uuid.NewString(),
			ProgramDayID: day.ID,
			Date:         calendar.Day(req.Date),
			Completed:    !req.Skipped,
			Skipped:      req.Skipped,
			Sets:         nil,
		},
		WeightUpdates: nil,
	}
	if req.Skipped {
		return plan, nil
	}

	entered := make(map[string][]progression.Entry, len(req.Exercises))
	for _, ee := range req.Exercises {
		if _, ok := day.Exercise(ee.ExerciseID); !ok {
			return CommitPlan{}, fmt.Errorf("%w: exercise %s is not part of %s", ErrInvalidEntry, ee.ExerciseID, day.ID)
		}
		if _, dup := entered[ee.ExerciseID]; dup {
			return CommitPlan{}, fmt.Errorf("%w: exercise %s entered twice", ErrInvalidEntry, ee.ExerciseID)
		}
		for i, e := range ee.Sets {
			if err := validateEntry(e); err != nil {
				return CommitPlan{}, fmt.Errorf("exercise %s set %d: %w", ee.ExerciseID, i+1, err)
			}
		}
		entered[ee.ExerciseID] = ee.Sets
	}

	// Walk the exercises in program order so that the plan is deterministic.
	for _, ex := range day.Exercises {
		entries, touched := entered[ex.ID]
		if !touched {
			continue
		}
		var performed []progression.Performed
		for _, e := range entries {
			if e.Blank() {
				continue
			}
			p := e.Performed()
			performed = append(performed, p)
			plan.Log.Sets = append(plan.Log.Sets, WorkoutSet{
				ExerciseID: ex.ID,
				SetNumber:  len(performed),
				WeightKg:   p.WeightKg,
				Reps:       p.Reps,
				IsAMRAP:    e.IsAMRAP,
			})
		}
		if weight, ok := progression.LastValidPerformance(ex.TargetReps, performed); ok {
			plan.WeightUpdates = append(plan.WeightUpdates, WeightUpdate{ExerciseID: ex.ID, WeightKg: weight})
		}
	}
	return plan, nil
}

func validateEntry(e progression.Entry) error {
	if e.WeightKg != nil {
		w := *e.WeightKg
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight %v", ErrInvalidEntry, w)
		}
	}
	if e.Reps != nil && *e.Reps < 0 {
		return fmt.Errorf("%w: reps %d", ErrInvalidEntry, *e.Reps)
	}
	return nil
}
