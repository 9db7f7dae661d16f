// Package access resolves the calling account and enforces role checks.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/models"
)

const (
	MessageUnknownUser = "등록되지 않은 사용자입니다."
	MessageStaffOnly   = "교사 또는 관리자만 사용할 수 있는 기능입니다."
	MessageNotOwner    = "본인의 예약만 삭제할 수 있습니다."
)

// UserRepository is the account store consulted for roles.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Service resolves identities handed over by the upstream authenticator.
type Service struct {
	users  UserRepository
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(users UserRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// CurrentActor looks up the role of userID. Unknown or blank ids are denied.
func (s *Service) CurrentActor(ctx context.Context, userID string) (models.Actor, error) {
	if userID == "" {
		return models.Actor{}, &DeniedError{Reason: MessageUnknownUser}
	}
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Debug().Str("user_id", userID).Msg("unknown user")
		return models.Actor{}, &DeniedError{Reason: MessageUnknownUser}
	}
	if err != nil {
		return models.Actor{}, fmt.Errorf("resolving user %s: %w", userID, err)
	}
	if !u.Role.Valid() {
		return models.Actor{}, &DeniedError{Reason: MessageUnknownUser}
	}
	return u.Actor(), nil
}

// RequireStaff allows teachers and admins.
func RequireStaff(actor models.Actor) error {
	if !actor.Role.IsStaff() {
		return &DeniedError{Reason: MessageStaffOnly}
	}
	return nil
}

// RequireOwnerOrStaff allows the owner of a record and any staff member.
func RequireOwnerOrStaff(actor models.Actor, ownerID string) error {
	if actor.ID != "" && actor.ID == ownerID {
		return nil
	}
	if actor.Role.IsStaff() {
		return nil
	}
	return &DeniedError{Reason: MessageNotOwner}
}

// DeniedError is returned when user access is denied.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}
