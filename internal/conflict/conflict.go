// Package conflict decides whether a candidate interval collides with the
// reservations already holding a room.
package conflict

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"teukbyeolsil/internal/models"
)

// Stage tells where a conflict was detected.
type Stage string

const (
	// StageAdvisory is the pre-submit check. It may be stale.
	StageAdvisory Stage = "advisory"
	// StageAuthoritative is the check made atomically with the insert.
	StageAuthoritative Stage = "authoritative"
)

const (
	MessagePending   = "해당 시간대에 예약 대기중입니다. 다른 시간을 선택해주세요."
	MessageConfirmed = "해당 시간대에 이미 예약이 존재합니다. 다른 시간을 선택해주세요."
)

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps is the half-open overlap test. Touching endpoints do not overlap.
func Overlaps(existing, candidate Interval) bool {
	return existing.Start.Before(candidate.End) && existing.End.After(candidate.Start)
}

// Error reports the reservation a candidate collided with.
type Error struct {
	Stage       Stage
	Occurrence  int // index of the colliding candidate within a series
	Candidate   Interval
	Conflicting models.Reservation
}

// Status is the status of the reservation already holding the slot.
func (e *Error) Status() models.Status { return e.Conflicting.Status }

// Message is the user-facing text, which differs for pending and confirmed holders.
func (e *Error) Message() string {
	if e.Conflicting.Status == models.StatusPending {
		return MessagePending
	}
	return MessageConfirmed
}

func (e *Error) Error() string {
	return fmt.Sprintf("conflict (%s): %s-%s overlaps %s reservation %s",
		e.Stage,
		e.Candidate.Start.Format(time.RFC3339), e.Candidate.End.Format(time.RFC3339),
		e.Conflicting.Status, e.Conflicting.ID)
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Detect returns the reservation in existing that collides with candidate,
// or nil. Reservations that are not pending or confirmed, and the one whose
// ID equals excludeID, are ignored. A confirmed holder wins over a pending
// one so the caller reports the firmer reason.
func Detect(candidate Interval, existing []models.Reservation, excludeID string) *models.Reservation {
	var hit *models.Reservation
	for i := range existing {
		r := &existing[i]
		if !r.Status.Blocking() || (excludeID != "" && r.ID == excludeID) {
			continue
		}
		if !Overlaps(Interval{Start: r.StartTime, End: r.EndTime}, candidate) {
			continue
		}
		if r.Status == models.StatusConfirmed {
			return r
		}
		if hit == nil || r.StartTime.Before(hit.StartTime) {
			hit = r
		}
	}
	return hit
}

// DetectSeries checks each candidate in order and returns the first collision
// as an *Error, or nil when the whole series is free.
func DetectSeries(stage Stage, candidates []Interval, existing []models.Reservation) *Error {
	sorted := make([]models.Reservation, len(existing))
	copy(sorted, existing)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	for i, c := range candidates {
		if hit := Detect(c, sorted, ""); hit != nil {
			return &Error{Stage: stage, Occurrence: i, Candidate: c, Conflicting: *hit}
		}
	}
	return nil
}

// Span returns the smallest interval covering every candidate.
func Span(candidates []Interval) Interval {
	var out Interval
	for i, c := range candidates {
		if i == 0 || c.Start.Before(out.Start) {
			out.Start = c.Start
		}
		if i == 0 || c.End.After(out.End) {
			out.End = c.End
		}
	}
	return out
}
