package testhelpers

import (
	"testing"
	"time"
)

// Date parses a YYYY-MM-DD string into a civil date and fails the test on malformed input.
func Date(tb testing.TB, s string) time.Time {
	tb.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		tb.Fatalf("parse test date %q: %v", s, err)
	}
	return d
}
