// Package programfile reads and writes training programs as YAML documents.
//
// A document looks like:
//
//	name: Push pull
//	days:
//	  - weekday: 1
//	    label: Push
//	    exercises:
//	      - name: Bench press
//	        sets: 4
//	        reps: 10
//	        weight_kg: 80
//	        increment: 2.5
//	  - weekday: 5
//	    label: Mobility
//	    rest_day: true
//
// Omitted sets, reps and increment take the program defaults.
package programfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/training"
	"gopkg.in/yaml.v3"
)

type document struct {
	Name string `yaml:"name"`
	Days []day  `yaml:"days"`
}

type day struct {
	Weekday   int        `yaml:"weekday"`
	Label     string     `yaml:"label,omitempty"`
	RestDay   bool       `yaml:"rest_day,omitempty"`
	Exercises []exercise `yaml:"exercises,omitempty"`
}

type exercise struct {
	Name      string  `yaml:"name"`
	Sets      int     `yaml:"sets,omitempty"`
	Reps      int     `yaml:"reps,omitempty"`
	WeightKg  float64 `yaml:"weight_kg"`
	Increment float64 `yaml:"increment,omitempty"`
}

// Decode reads a program document. Unknown keys and increments outside the allowed steps are errors.
func Decode(r io.Reader) (training.ProgramDraft, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return training.ProgramDraft{}, errors.New("decode program: empty document")
		}
		return training.ProgramDraft{}, fmt.Errorf("decode program: %w", err)
	}

	draft := training.ProgramDraft{Name: doc.Name, Days: make([]training.DayDraft, 0, len(doc.Days))}
	for _, d := range doc.Days {
		dd := training.DayDraft{
			Weekday:   d.Weekday,
			Label:     d.Label,
			RestDay:   d.RestDay,
			Exercises: make([]training.ExerciseDraft, 0, len(d.Exercises)),
		}
		for _, e := range d.Exercises {
			var increment progression.Increment
			if e.Increment != 0 {
				var err error
				if increment, err = progression.ParseIncrement(strconv.FormatFloat(e.Increment, 'f', -1, 64)); err != nil {
					return training.ProgramDraft{}, fmt.Errorf("weekday %d exercise %q: %w", d.Weekday, e.Name, err)
				}
			}
			dd.Exercises = append(dd.Exercises, training.ExerciseDraft{
				Name:            e.Name,
				TargetSets:      e.Sets,
				TargetReps:      e.Reps,
				CurrentWeightKg: e.WeightKg,
				Increment:       increment,
			})
		}
		draft.Days = append(draft.Days, dd)
	}
	return draft, nil
}

// Load reads the program document at path.
func Load(path string) (training.ProgramDraft, error) {
	f, err := os.Open(path)
	if err != nil {
		return training.ProgramDraft{}, fmt.Errorf("open program file: %w", err)
	}
	defer f.Close()

	draft, err := Decode(f)
	if err != nil {
		return training.ProgramDraft{}, fmt.Errorf("%s: %w", path, err)
	}
	return draft, nil
}

// Encode writes program as a document. Current weights are exported so that a re-import continues where the
// program left off.
func Encode(w io.Writer, program training.Program) error {
	doc := document{Name: program.Name, Days: make([]day, 0, len(program.Days))}
	for _, pd := range program.Days {
		d := day{Weekday: pd.Weekday, Label: pd.Label, RestDay: pd.RestDay, Exercises: nil}
		for _, ex := range pd.Exercises {
			d.Exercises = append(d.Exercises, exercise{
				Name:      ex.Name,
				Sets:      ex.TargetSets,
				Reps:      ex.TargetReps,
				WeightKg:  ex.CurrentWeightKg,
				Increment: ex.Increment.Kg(),
			})
		}
		doc.Days = append(doc.Days, d)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:mnd // two spaces like the documented format.
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode program: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}
