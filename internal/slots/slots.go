// Package slots models the bookable day as half-hour boundaries inside the
// operating window. Everything here is pure time-of-day arithmetic.
package slots

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"teukbyeolsil/internal/kst"
)

var (
	ErrBadClock      = errors.New("slots: invalid HH:MM value")
	ErrUnaligned     = errors.New("slots: time is not on a slot boundary")
	ErrOutOfWindow   = errors.New("slots: time is outside the operating window")
	ErrEndNotAfter   = errors.New("slots: end must be after start")
	ErrCrossesDay    = errors.New("slots: start and end must fall on the same date")
	ErrInvalidWindow = errors.New("slots: invalid operating window")
)

// Clock is a time of day in minutes after midnight.
type Clock int

// NewClock builds a Clock from hours and minutes.
func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock parses "HH:MM" (single-digit hours accepted).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return NewClock(hour, minute), nil
}

// ClockOf returns the civil time of day of t.
func ClockOf(t time.Time) Clock {
	t = kst.In(t)
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places c on the civil date of day.
func (c Clock) On(day time.Time) time.Time {
	return kst.StartOfDay(day).Add(time.Duration(c) * time.Minute)
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Window is the daily operating window and its slot granularity.
type Window struct {
	Open  Clock
	Close Clock
	Step  time.Duration
}

// Default is 08:00-22:00 in 30-minute slots.
var Default = Window{Open: NewClock(8, 0), Close: NewClock(22, 0), Step: 30 * time.Minute}

// NewWindow validates and builds a Window from "HH:MM" bounds.
func NewWindow(open, close string, stepMinutes int) (Window, error) {
	o, err := ParseClock(open)
	if err != nil {
		return Window{}, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return Window{}, err
	}
	w := Window{Open: o, Close: c, Step: time.Duration(stepMinutes) * time.Minute}
	if stepMinutes <= 0 || c <= o || int(c-o)%stepMinutes != 0 || int(o)%stepMinutes != 0 {
		return Window{}, fmt.Errorf("%w: %s-%s/%dm", ErrInvalidWindow, open, close, stepMinutes)
	}
	return w, nil
}

func (w Window) step() Clock { return Clock(w.Step / time.Minute) }

// Boundaries lists every boundary from Open to Close inclusive.
func (w Window) Boundaries() []Clock {
	var out []Clock
	for c := w.Open; c <= w.Close; c += w.step() {
		out = append(out, c)
	}
	return out
}

// Enumerate lists the slot start times: every boundary except Close.
func (w Window) Enumerate() []Clock {
	b := w.Boundaries()
	return b[:len(b)-1]
}

// Aligned reports whether c sits on a slot boundary.
func (w Window) Aligned(c Clock) bool {
	return (c-w.Open)%w.step() == 0
}

// IsValidStart accepts aligned starts from Open up to the last slot start.
func (w Window) IsValidStart(c Clock) bool {
	return w.Aligned(c) && c >= w.Open && c <= w.Close-w.step()
}

// IsValidEnd accepts aligned ends strictly after start and no later than Close.
func (w Window) IsValidEnd(start, end Clock) bool {
	return w.Aligned(end) && end > start && end <= w.Close
}

// Validate checks a concrete interval against the window rules.
func (w Window) Validate(start, end time.Time) error {
	if !end.After(start) {
		return ErrEndNotAfter
	}
	if !kst.SameDay(start, end) {
		return ErrCrossesDay
	}
	if start.Second() != 0 || end.Second() != 0 || start.Nanosecond() != 0 || end.Nanosecond() != 0 {
		return ErrUnaligned
	}
	s, e := ClockOf(start), ClockOf(end)
	if !w.Aligned(s) || !w.Aligned(e) {
		return ErrUnaligned
	}
	if !w.IsValidStart(s) || !w.IsValidEnd(s, e) {
		return ErrOutOfWindow
	}
	return nil
}

// Covering returns the slot starts on day whose half-open slot intersects
// [start, end).
func (w Window) Covering(day, start, end time.Time) []Clock {
	var out []Clock
	for _, c := range w.Enumerate() {
		slotStart := c.On(day)
		slotEnd := slotStart.Add(w.Step)
		if slotStart.Before(end) && start.Before(slotEnd) {
			out = append(out, c)
		}
	}
	return out
}

// Range returns slot starts in [from, to).
func (w Window) Range(from, to Clock) []Clock {
	var out []Clock
	for _, c := range w.Enumerate() {
		if c >= from && c < to {
			out = append(out, c)
		}
	}
	return out
}
