// Package availability computes, for one room and one date, which slots are
// booked, restricted or already elapsed. An Index is a snapshot: build a new
// one for every query and after every reservation or restriction change.
package availability

import (
	"errors"
	"fmt"
	"time"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/slots"
)

// State of a single slot start.
type State string

const (
	StateFree       State = "free"
	StateBooked     State = "booked"
	StateRestricted State = "restricted"
	StatePast       State = "past"
)

// ErrPast is returned when an interval starts in an elapsed slot.
var ErrPast = errors.New("availability: 지난 시간은 선택할 수 없습니다")

// MessageRestricted is shown for a slot blocked by a restriction.
const MessageRestricted = "해당 시간대는 사용이 제한되어 있습니다."

// RestrictedError names the restriction blocking a requested slot.
type RestrictedError struct {
	Slot        slots.Clock
	Date        time.Time
	Description string
	Reason      string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("slot %s %s is restricted (%s)", kst.In(e.Date).Format(time.DateOnly), e.Slot, e.Description)
}

// Input is the snapshot an Index is built from.
type Input struct {
	RoomID       string
	Date         time.Time
	Reservations []models.Reservation
	Restrictions []models.RoomRestriction
	Now          time.Time
}

// Index holds three disjoint slot sets. A slot that is both booked and
// restricted is reported as booked; past only collects what is left.
type Index struct {
	RoomID     string
	Date       time.Time
	window     slots.Window
	booked     map[slots.Clock]models.Status
	restricted map[slots.Clock]*models.RoomRestriction
	past       map[slots.Clock]struct{}
}

// Build computes the index for in.Date.
func Build(w slots.Window, in Input) *Index {
	day := kst.StartOfDay(in.Date)
	ix := &Index{
		RoomID:     in.RoomID,
		Date:       day,
		window:     w,
		booked:     make(map[slots.Clock]models.Status),
		restricted: make(map[slots.Clock]*models.RoomRestriction),
		past:       make(map[slots.Clock]struct{}),
	}

	for _, r := range in.Reservations {
		if !r.Status.Blocking() || (in.RoomID != "" && r.RoomID != "" && r.RoomID != in.RoomID) {
			continue
		}
		for _, c := range w.Covering(day, r.StartTime, r.EndTime) {
			if prev, ok := ix.booked[c]; !ok || prev == models.StatusPending {
				ix.booked[c] = r.Status
			}
		}
	}

	for i := range in.Restrictions {
		rr := &in.Restrictions[i]
		if !rr.IsActive || (in.RoomID != "" && rr.RoomID != in.RoomID) {
			continue
		}
		for _, c := range rr.Period.Slots(w, day) {
			if _, taken := ix.booked[c]; taken {
				continue
			}
			if _, seen := ix.restricted[c]; !seen {
				ix.restricted[c] = rr
			}
		}
	}

	if !in.Now.IsZero() && kst.SameDay(in.Now, day) {
		for _, c := range w.Enumerate() {
			if !c.On(day).Before(in.Now) {
				break
			}
			if ix.stateOf(c) == StateFree {
				ix.past[c] = struct{}{}
			}
		}
	}

	return ix
}

func (ix *Index) stateOf(c slots.Clock) State {
	if _, ok := ix.booked[c]; ok {
		return StateBooked
	}
	if _, ok := ix.restricted[c]; ok {
		return StateRestricted
	}
	if _, ok := ix.past[c]; ok {
		return StatePast
	}
	return StateFree
}

// State returns the state of slot start c.
func (ix *Index) State(c slots.Clock) State { return ix.stateOf(c) }

// Booked lists booked slot starts in order.
func (ix *Index) Booked() []slots.Clock { return ix.collect(StateBooked) }

// Restricted lists restricted slot starts in order.
func (ix *Index) Restricted() []slots.Clock { return ix.collect(StateRestricted) }

// Past lists elapsed slot starts in order.
func (ix *Index) Past() []slots.Clock { return ix.collect(StatePast) }

func (ix *Index) collect(s State) []slots.Clock {
	var out []slots.Clock
	for _, c := range ix.window.Enumerate() {
		if ix.stateOf(c) == s {
			out = append(out, c)
		}
	}
	return out
}

// DisabledStart reports whether c cannot be offered as a start time.
func (ix *Index) DisabledStart(c slots.Clock) bool {
	return !ix.window.IsValidStart(c) || ix.stateOf(c) != StateFree
}

// DisabledEnd reports whether c cannot be offered as the end of an interval
// starting at start. Every slot in [start, end) must be free.
func (ix *Index) DisabledEnd(start, end slots.Clock) bool {
	if !ix.window.IsValidEnd(start, end) {
		return true
	}
	for _, c := range ix.window.Range(start, end) {
		if ix.stateOf(c) != StateFree {
			return true
		}
	}
	return false
}

// Check verifies that [start, end) on the index date is offerable apart from
// existing bookings, which the conflict detector reports with their status.
func (ix *Index) Check(start, end time.Time) error {
	if err := ix.window.Validate(start, end); err != nil {
		return err
	}
	for _, c := range ix.window.Covering(ix.Date, start, end) {
		if rr, ok := ix.restricted[c]; ok {
			return &RestrictedError{Slot: c, Date: ix.Date, Description: rr.RestrictedHours, Reason: rr.Reason}
		}
		if _, ok := ix.past[c]; ok {
			return ErrPast
		}
	}
	return nil
}

// Slot is the per-slot view returned to clients.
type Slot struct {
	Start        slots.Clock   `json:"start"`
	End          slots.Clock   `json:"end"`
	State        State         `json:"state"`
	BookedStatus models.Status `json:"booked_status,omitempty"`
}

// Slots lists every slot of the day with its state.
func (ix *Index) Slots() []Slot {
	step := slots.Clock(ix.window.Step / time.Minute)
	starts := ix.window.Enumerate()
	out := make([]Slot, 0, len(starts))
	for _, c := range starts {
		s := Slot{Start: c, End: c + step, State: ix.stateOf(c)}
		if s.State == StateBooked {
			s.BookedStatus = ix.booked[c]
		}
		out = append(out, s)
	}
	return out
}
