// Package restriction describes when a room is blacked out. A Period is
// decided when the restriction is created and matched against dates at
// query time; no free text is parsed.
package restriction

import (
	"errors"
	"fmt"
	"time"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/slots"
)

// Kind selects which dates a Period covers.
type Kind string

const (
	KindWeekday   Kind = "weekday"
	KindWeekend   Kind = "weekend"
	KindAllTime   Kind = "all"
	KindDateRange Kind = "date_range"
)

var (
	ErrUnknownKind  = errors.New("restriction: unknown period kind")
	ErrMissingDates = errors.New("restriction: date range needs a start date")
	ErrDateOrder    = errors.New("restriction: end date is before start date")
	ErrWindowOrder  = errors.New("restriction: time window end must be after start")
)

// TimeWindow narrows a Period to [From, To) on each matching date.
type TimeWindow struct {
	From slots.Clock `json:"from"`
	To   slots.Clock `json:"to"`
}

// Period is one of Weekday, Weekend, AllTime or DateRange, optionally
// qualified by a time window. A nil Window restricts the whole date.
type Period struct {
	Kind      Kind        `json:"kind"`
	StartDate time.Time   `json:"start_date,omitempty"`
	EndDate   time.Time   `json:"end_date,omitempty"`
	Window    *TimeWindow `json:"window,omitempty"`
}

func Weekday(w *TimeWindow) Period { return Period{Kind: KindWeekday, Window: w} }
func Weekend(w *TimeWindow) Period { return Period{Kind: KindWeekend, Window: w} }
func AllTime(w *TimeWindow) Period { return Period{Kind: KindAllTime, Window: w} }

// DateRange covers start..end inclusive. A zero end means the single date start.
func DateRange(start, end time.Time, w *TimeWindow) Period {
	p := Period{Kind: KindDateRange, StartDate: kst.StartOfDay(start), Window: w}
	if end.IsZero() {
		p.EndDate = p.StartDate
	} else {
		p.EndDate = kst.StartOfDay(end)
	}
	return p
}

// Validate checks the variant is well-formed.
func (p Period) Validate() error {
	switch p.Kind {
	case KindWeekday, KindWeekend, KindAllTime:
	case KindDateRange:
		if p.StartDate.IsZero() {
			return ErrMissingDates
		}
		if !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
			return ErrDateOrder
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
	if p.Window != nil && p.Window.To <= p.Window.From {
		return ErrWindowOrder
	}
	return nil
}

// Matches reports whether the civil date of day falls under the period.
func (p Period) Matches(day time.Time) bool {
	switch p.Kind {
	case KindWeekday:
		return !kst.IsWeekend(day)
	case KindWeekend:
		return kst.IsWeekend(day)
	case KindAllTime:
		return true
	case KindDateRange:
		d := kst.StartOfDay(day)
		start := kst.StartOfDay(p.StartDate)
		end := start
		if !p.EndDate.IsZero() {
			end = kst.StartOfDay(p.EndDate)
		}
		return !d.Before(start) && !d.After(end)
	}
	return false
}

// Slots returns the slot starts of w restricted on day, or nil when the
// period does not match day.
func (p Period) Slots(w slots.Window, day time.Time) []slots.Clock {
	if !p.Matches(day) {
		return nil
	}
	if p.Window == nil {
		return w.Enumerate()
	}
	return w.Range(p.Window.From, p.Window.To)
}

const dateLayout = "2006년 01월 02일"

// String renders the period the way the admin screens display it, e.g.
// "평일 18:00 - 20:00" or "2024년 05월 01일 - 2024년 05월 03일 전체".
func (p Period) String() string {
	var head string
	switch p.Kind {
	case KindWeekday:
		head = "평일"
	case KindWeekend:
		head = "주말"
	case KindAllTime:
		head = "전체 기간"
	case KindDateRange:
		start := kst.In(p.StartDate)
		head = start.Format(dateLayout)
		if !p.EndDate.IsZero() && !kst.SameDay(p.StartDate, p.EndDate) {
			head += " - " + kst.In(p.EndDate).Format(dateLayout)
		}
	default:
		return string(p.Kind)
	}

	if p.Window != nil {
		return fmt.Sprintf("%s %s - %s", head, p.Window.From, p.Window.To)
	}
	if p.Kind == KindAllTime {
		return head
	}
	return head + " 전체"
}
