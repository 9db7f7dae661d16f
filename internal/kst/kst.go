// Package kst pins every civil-time computation to the fixed +09:00 offset
// the school operates in. The host machine's local zone is never consulted.
package kst

import "time"

// Zone is UTC+09:00 without daylight saving.
var Zone = time.FixedZone("KST", 9*60*60)

// Clock returns the current instant. Services hold one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Now returns the current civil time in Zone.
func Now() time.Time { return In(time.Now()) }

// In converts an instant to civil time in Zone. The instant is unchanged.
func In(t time.Time) time.Time { return t.In(Zone) }

// Date builds a midnight civil date in Zone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Zone)
}

// StartOfDay truncates t to midnight of its civil date in Zone.
func StartOfDay(t time.Time) time.Time {
	t = In(t)
	return Date(t.Year(), t.Month(), t.Day())
}

// SameDay reports whether a and b fall on the same civil date in Zone.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// ParseDate parses a YYYY-MM-DD civil date in Zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, Zone)
}

// IsWeekend reports whether t falls on Saturday or Sunday in Zone.
func IsWeekend(t time.Time) bool {
	switch In(t).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
