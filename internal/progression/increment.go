package progression

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidIncrement is returned when a weight increment is not one of the allowed steps.
var ErrInvalidIncrement = errors.New("invalid weight increment")

// Increment is the amount an exercise's working weight advances by, counted in 1.25 kg plates.
//
// The zero value is not a valid increment. Values come from ParseIncrement so that a malformed configuration is
// rejected where it is loaded instead of being absorbed as a zero step later.
type Increment int

const (
	incrementStepKg  = 1.25
	minIncrementStep = 1
	maxIncrementStep = 8
)

// DefaultIncrement is the 2.5 kg step programs get when no increment is given.
const DefaultIncrement Increment = 2

// AllowedIncrements lists every valid increment in ascending order.
func AllowedIncrements() []Increment {
	increments := make([]Increment, 0, maxIncrementStep)
	for i := Increment(minIncrementStep); i <= maxIncrementStep; i++ {
		increments = append(increments, i)
	}
	return increments
}

// ParseIncrement parses a decimal kilogram value such as "2.5" or "10".
func ParseIncrement(s string) (Increment, error) {
	kg, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIncrement, s)
	}
	steps := kg / incrementStepKg
	if steps != math.Trunc(steps) || steps < minIncrementStep || steps > maxIncrementStep {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIncrement, s)
	}
	return Increment(steps), nil
}

// Valid reports whether i is one of the allowed increments.
func (i Increment) Valid() bool {
	return i >= minIncrementStep && i <= maxIncrementStep
}

// Kg returns the increment in kilograms. It panics on an invalid increment.
func (i Increment) Kg() float64 {
	if !i.Valid() {
		panic(fmt.Sprintf("progression: %v: %d steps", ErrInvalidIncrement, int(i)))
	}
	return float64(i) * incrementStepKg
}

// String returns the canonical decimal form, e.g. "2.5".
func (i Increment) String() string {
	if !i.Valid() {
		return fmt.Sprintf("Increment(%d)", int(i))
	}
	return strconv.FormatFloat(i.Kg(), 'f', -1, 64)
}

// MarshalText implements encoding.TextMarshaler.
func (i Increment) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("%w: %d steps", ErrInvalidIncrement, int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Increment) UnmarshalText(text []byte) error {
	parsed, err := ParseIncrement(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// UnmarshalJSON accepts the increment as a JSON number or string.
func (i *Increment) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	return i.UnmarshalText([]byte(s))
}
