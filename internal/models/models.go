package models

import (
	"time"

	"teukbyeolsil/internal/restriction"
)

// Role of an authenticated account.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r may approve, reject, restrict and archive.
func (r Role) IsStaff() bool { return r == RoleTeacher || r == RoleAdmin }

// Status of a live reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Blocking reports whether a reservation in this status holds its slot.
func (s Status) Blocking() bool { return s == StatusPending || s == StatusConfirmed }

// BlockingStatuses are the statuses that take part in overlap checks.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	StudentID string    `json:"student_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor returns the identity view of u.
func (u *User) Actor() Actor { return Actor{ID: u.ID, Role: u.Role} }

type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Capacity        int       `json:"capacity"`
	Location        string    `json:"location"`
	Facilities      []string  `json:"facilities"`
	IsAvailable     bool      `json:"is_available"`
	RestrictedHours string    `json:"restricted_hours,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Reservation is a booking of one room for one [StartTime, EndTime) interval.
type Reservation struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	RoomID          string     `json:"room_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Purpose         string     `json:"purpose"`
	Attendees       []string   `json:"attendees"`
	Status          Status     `json:"status"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`

	// Filled by list queries for display.
	RoomName string `json:"room_name,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// LastTouched is UpdatedAt, or CreatedAt when the record was never updated.
func (r *Reservation) LastTouched() time.Time {
	if r.UpdatedAt != nil && !r.UpdatedAt.IsZero() {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// RoomRestriction blacks out a room for a Period.
type RoomRestriction struct {
	ID              string             `json:"id"`
	RoomID          string             `json:"room_id"`
	Period          restriction.Period `json:"period"`
	RestrictedHours string             `json:"restricted_hours"`
	Reason          string             `json:"reason,omitempty"`
	IsActive        bool               `json:"is_active"`
	CreatedBy       string             `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	RoomName string `json:"room_name,omitempty"`
}

// ArchivedReservation is a point-in-time copy of a reservation.
type ArchivedReservation struct {
	Reservation
	OriginalID string    `json:"original_id"`
	ArchivedAt time.Time `json:"archived_at"`
}

// SystemNotice is the single global notice shown with every room.
type SystemNotice struct {
	RestrictedHours string    `json:"restricted_hours"`
	Notes           string    `json:"notes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	RoomID   string
	UserID   string
	Statuses []Status
	From     time.Time
	To       time.Time
	Limit    int
}
