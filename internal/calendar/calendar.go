// Package calendar maps calendar dates to ISO-8601 weeks and program weekdays.
//
// A civil date is represented as a time.Time at midnight UTC. Use Day to turn a wall-clock instant into the civil
// date the user sees on their own clock.
package calendar

import (
	"fmt"
	"time"
)

// WindowDays is the number of dates in the browsable window: the selected week and the next one.
const WindowDays = 14

const daysPerWeek = 7

// Day returns the civil date of t as read from t's own location.
//
// The conversion never shifts zones, so 00:30 in Paris is the same day in Paris even though it is still the previous
// day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date in the local time zone.
func Today() time.Time {
	return Day(time.Now())
}

// WeekNumber returns the ISO-8601 week number of t.
func WeekNumber(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// StartOfWeek returns the Monday that begins ISO week `week` of `year`.
//
// Week 1 is the week containing January 4th. Out of range weeks roll over into the neighbouring years.
func StartOfWeek(week, year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC) //nolint:mnd // January 4th is always in week 1.
	monday := jan4.AddDate(0, 0, 1-WeekdayOrdinal(jan4))
	return monday.AddDate(0, 0, (week-1)*daysPerWeek)
}

// TwoWeekWindow returns the 14 consecutive dates starting at StartOfWeek(week, year).
func TwoWeekWindow(week, year int) []time.Time {
	start := StartOfWeek(week, year)
	dates := make([]time.Time, WindowDays)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// ISODay formats t as YYYY-MM-DD from its own calendar fields.
//
// The result is the persistence key for a session, so it must not be computed from t.UTC().
func ISODay(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseISODay parses a YYYY-MM-DD string into a civil date.
func ParseISODay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse iso day %q: %w", s, err)
	}
	return t, nil
}

// WeekdayOrdinal returns 1 for Monday through 7 for Sunday.
func WeekdayOrdinal(t time.Time) int {
	return OrdinalFromNative(int(t.Weekday()))
}

// OrdinalFromNative converts a Sunday=0..Saturday=6 weekday into Monday=1..Sunday=7.
func OrdinalFromNative(dow int) int {
	return (dow+6)%daysPerWeek + 1 //nolint:mnd // shift Sunday to the end of the week.
}
