// Package progression holds the progressive overload rules: default sets, the next prescribed weight, and the
// weight actually achieved in a session.
package progression

import "github.com/shamoevthomas/forceapp/internal/ptr"

// Rep thresholds. Prescribing a heavier weight needs every set at the target, while syncing the stored weight to
// what was lifted accepts a set one rep short.
const (
	AdvanceRepShortfall = 0
	SyncRepShortfall    = 1
)

// Target is the prescription of one exercise.
type Target struct {
	Sets      int
	Reps      int
	WeightKg  float64
	Increment Increment
}

// Performed is a set as it was lifted.
type Performed struct {
	WeightKg float64
	Reps     int
}

// Entry is a set as shown in or submitted from a session form. Nil fields are blank.
type Entry struct {
	WeightKg *float64 `json:"weight_kg"`
	Reps     *int     `json:"reps"`
	IsAMRAP  bool     `json:"is_amrap"`
}

// Blank reports whether neither weight nor reps were entered.
func (e Entry) Blank() bool {
	return e.WeightKg == nil && e.Reps == nil
}

// Performed reads the entry as a lifted set, blank fields counting as zero.
func (e Entry) Performed() Performed {
	return Performed{
		WeightKg: ptr.Deref(e.WeightKg, 0),
		Reps:     ptr.Deref(e.Reps, 0),
	}
}

// PrescribedSets returns target.Sets entries pre-filled with weightKg and blank reps.
func PrescribedSets(target Target, weightKg float64) []Entry {
	entries := make([]Entry, max(target.Sets, 0))
	for i := range entries {
		entries[i] = Entry{WeightKg: ptr.Ref(weightKg), Reps: nil, IsAMRAP: false}
	}
	return entries
}

// DefaultSets returns the placeholder sets for an exercise without usable history.
func DefaultSets(target Target) []Entry {
	return PrescribedSets(target, target.WeightKg)
}

// NextWeight returns the weight to prescribe after the prior session's sets.
//
// The weight advances by one increment only if at least target.Sets sets were done and every one of them, extra
// sets included, reached target.Reps. Otherwise the current weight is returned unchanged.
func NextWeight(target Target, prior []Performed) float64 {
	if len(prior) == 0 || len(prior) < target.Sets {
		return target.WeightKg
	}
	for _, set := range prior {
		if set.Reps < target.Reps-AdvanceRepShortfall {
			return target.WeightKg
		}
	}
	return target.WeightKg + target.Increment.Kg()
}

// LastValidPerformance scans the session's sets from last to first and returns the weight of the first set with a
// positive weight and at most SyncRepShortfall reps short of targetReps.
func LastValidPerformance(targetReps int, entered []Performed) (float64, bool) {
	for i := len(entered) - 1; i >= 0; i-- {
		set := entered[i]
		if set.WeightKg > 0 && set.Reps >= targetReps-SyncRepShortfall {
			return set.WeightKg, true
		}
	}
	return 0, false
}
