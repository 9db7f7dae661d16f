package service

import (
	"context"
	"time"

	"teukbyeolsil/internal/lifecycle"
	"teukbyeolsil/internal/models"
)

// RoomRepository is the room store.
type RoomRepository interface {
	CreateRoom(ctx context.Context, r *models.Room) error
	UpdateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ReservationRepository is the live reservation store.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationsForRoom(ctx context.Context, roomID string, from, to time.Time, statuses []models.Status) ([]models.Reservation, error)
	ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error)
	InsertReservations(ctx context.Context, records []models.Reservation) error
	UpdateReservationStatus(ctx context.Context, p lifecycle.Patch) error
	DeleteReservation(ctx context.Context, id string) error
}

// RestrictionRepository is the room restriction store.
type RestrictionRepository interface {
	CreateRestriction(ctx context.Context, rr *models.RoomRestriction) error
	SetRestrictionActive(ctx context.Context, id string, active bool) (*models.RoomRestriction, error)
	DeleteRestriction(ctx context.Context, id string) error
	GetRestriction(ctx context.Context, id string) (*models.RoomRestriction, error)
	GetActiveRestrictionsForRoom(ctx context.Context, roomID string) ([]models.RoomRestriction, error)
	ListRestrictions(ctx context.Context, activeOnly bool) ([]models.RoomRestriction, error)
}

// NoticeRepository stores the singleton system notice.
type NoticeRepository interface {
	GetSystemNotice(ctx context.Context) (*models.SystemNotice, error)
	UpsertSystemNotice(ctx context.Context, n models.SystemNotice) (*models.SystemNotice, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) (int, error)
}

// ArchiveRepository lists archived reservations.
type ArchiveRepository interface {
	ListArchived(ctx context.Context, since time.Time) ([]models.ArchivedReservation, error)
}
