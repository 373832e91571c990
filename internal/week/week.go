// Package week holds the calendar arithmetic shared by the rotation engine and
// the completion ledger. Weeks start on Monday and are represented as 00:00 UTC
// of that Monday, so a week's key never depends on the clock time or zone of the
// value it was derived from.
package week

import (
	"fmt"
	"time"
)

// KeyLayout is the textual form of a week key.
const KeyLayout = "2006-01-02"

// WindowOffsets are the week offsets rendered around a reference week.
var WindowOffsets = [...]int{-2, -1, 0, 1}

// Start returns the Monday of the week containing the civil date of t.
func Start(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	// Sunday belongs to the week that began six days earlier.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Key formats the canonical YYYY-MM-DD key of t's week.
func Key(t time.Time) string {
	return Start(t).Format(KeyLayout)
}

// ParseKey parses a YYYY-MM-DD date and returns the start of its week.
func ParseKey(s string) (time.Time, error) {
	t, err := time.Parse(KeyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week %q: %w", s, err)
	}
	return Start(t), nil
}

// Add moves a week start by n weeks.
func Add(t time.Time, n int) time.Time {
	return Start(t).AddDate(0, 0, 7*n)
}

// DisplayWindow returns the week starts shown around ref, oldest first.
func DisplayWindow(ref time.Time) []time.Time {
	weeks := make([]time.Time, 0, len(WindowOffsets))
	for _, off := range WindowOffsets {
		weeks = append(weeks, Add(ref, off))
	}
	return weeks
}

// Label renders a week as "M/D - M/D", Monday through Sunday.
func Label(t time.Time) string {
	start := Start(t)
	end := start.AddDate(0, 0, 6)
	return fmt.Sprintf("%d/%d - %d/%d", int(start.Month()), start.Day(), int(end.Month()), end.Day())
}

// Today returns the start of the current week as seen from loc.
func Today(loc *time.Location) time.Time {
	return Current(time.Now(), loc)
}

// Current returns the start of the week containing now in loc.
func Current(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Start(now.In(loc))
}
