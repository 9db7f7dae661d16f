// Package lifecycle governs reservation status transitions and the fields
// each transition must set or clear.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"teukbyeolsil/internal/models"
)

var (
	ErrIllegalTransition = errors.New("lifecycle: transition not allowed")
	ErrReasonRequired    = errors.New("lifecycle: rejection reason is required")
	ErrNotAuthorized     = errors.New("lifecycle: actor may not review reservations")
)

// Patch is the complete set of lifecycle fields written by one transition.
// Stores apply it as a single update guarded by From.
type Patch struct {
	ID              string
	From            models.Status
	To              models.Status
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectedBy      string
	RejectionReason string
	UpdatedAt       time.Time
}

// Apply copies the patch onto r.
func (p Patch) Apply(r *models.Reservation) {
	r.Status = p.To
	r.ApprovedBy = p.ApprovedBy
	r.ApprovedAt = p.ApprovedAt
	r.RejectedBy = p.RejectedBy
	r.RejectionReason = p.RejectionReason
	at := p.UpdatedAt
	r.UpdatedAt = &at
}

// Machine holds the allowed transitions.
type Machine struct {
	transitions map[models.Status][]models.Status
}

// New returns the reservation machine: pending may become confirmed or
// rejected, and both of those are terminal.
func New() *Machine {
	return &Machine{
		transitions: map[models.Status][]models.Status{
			models.StatusPending:   {models.StatusConfirmed, models.StatusRejected},
			models.StatusConfirmed: {},
			models.StatusRejected:  {},
		},
	}
}

// CanTransition checks if transition is allowed.
func (m *Machine) CanTransition(from, to models.Status) bool {
	for _, s := range m.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InitialStatus is confirmed for staff and pending for everyone else.
func InitialStatus(role models.Role) models.Status {
	if role.IsStaff() {
		return models.StatusConfirmed
	}
	return models.StatusPending
}

// Initialize sets the status of a new reservation submitted by actor. Staff
// submissions are self-approved.
func Initialize(r *models.Reservation, actor models.Actor, now time.Time) {
	r.Status = InitialStatus(actor.Role)
	r.RejectedBy = ""
	r.RejectionReason = ""
	if r.Status == models.StatusConfirmed {
		at := now
		r.ApprovedBy = actor.ID
		r.ApprovedAt = &at
	} else {
		r.ApprovedBy = ""
		r.ApprovedAt = nil
	}
}

// Approve builds the pending -> confirmed patch.
func (m *Machine) Approve(r models.Reservation, actor models.Actor, now time.Time) (Patch, error) {
	if !actor.Role.IsStaff() {
		return Patch{}, ErrNotAuthorized
	}
	if !m.CanTransition(r.Status, models.StatusConfirmed) {
		return Patch{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, models.StatusConfirmed)
	}
	at := now
	return Patch{
		ID:         r.ID,
		From:       r.Status,
		To:         models.StatusConfirmed,
		ApprovedBy: actor.ID,
		ApprovedAt: &at,
		UpdatedAt:  now,
	}, nil
}

// Reject builds the pending -> rejected patch. reason must not be blank.
func (m *Machine) Reject(r models.Reservation, actor models.Actor, reason string, now time.Time) (Patch, error) {
	if !actor.Role.IsStaff() {
		return Patch{}, ErrNotAuthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Patch{}, ErrReasonRequired
	}
	if !m.CanTransition(r.Status, models.StatusRejected) {
		return Patch{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, models.StatusRejected)
	}
	return Patch{
		ID:              r.ID,
		From:            r.Status,
		To:              models.StatusRejected,
		RejectedBy:      actor.ID,
		RejectionReason: reason,
		UpdatedAt:       now,
	}, nil
}

// CheckInvariant reports a reservation whose lifecycle fields disagree with
// its status.
func CheckInvariant(r models.Reservation) error {
	switch r.Status {
	case models.StatusConfirmed:
		if r.ApprovedBy == "" || r.RejectionReason != "" || r.RejectedBy != "" {
			return fmt.Errorf("reservation %s: confirmed needs an approver and no rejection", r.ID)
		}
	case models.StatusRejected:
		if strings.TrimSpace(r.RejectionReason) == "" || r.RejectedBy == "" || r.ApprovedBy != "" {
			return fmt.Errorf("reservation %s: rejected needs a reason and rejecter and no approver", r.ID)
		}
	case models.StatusPending:
		if r.ApprovedBy != "" || r.RejectedBy != "" || r.RejectionReason != "" {
			return fmt.Errorf("reservation %s: pending must not carry review fields", r.ID)
		}
	default:
		return fmt.Errorf("reservation %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}
