package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
)

// ProfileInput is the self-service part of an account.
type ProfileInput struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

type AccountService struct {
	users  UserRepository
	staff  map[string]models.Role
	bus    *events.Bus
	logger zerolog.Logger
}

// NewAccountService creates the account service. staff maps user ids to the
// role they are given on registration; everyone else registers as a student.
func NewAccountService(users UserRepository, staff map[string]string, bus *events.Bus, logger *zerolog.Logger) *AccountService {
	roles := make(map[string]models.Role, len(staff))
	for id, role := range staff {
		if r := models.Role(role); r.IsStaff() {
			roles[id] = r
		}
	}
	return &AccountService{
		users:  users,
		staff:  roles,
		bus:    bus,
		logger: logger.With().Str("component", "account").Logger(),
	}
}

// roleFor picks the role for userID. Provisioned staff get their configured
// role, an existing account keeps its role, and a new account is a student.
func (s *AccountService) roleFor(userID string, existing *models.User) models.Role {
	if r, ok := s.staff[userID]; ok {
		return r
	}
	if existing != nil && existing.Role.Valid() {
		return existing.Role
	}
	return models.RoleStudent
}

// Register creates or refreshes the profile of the user the upstream
// authenticator identified as userID. The role is never taken from input.
func (s *AccountService) Register(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &access.DeniedError{Reason: access.MessageUnknownUser}
	}

	existing, err := s.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if errors.Is(err, database.ErrNotFound) {
		existing = nil
	}

	u := &models.User{
		ID:        userID,
		Email:     strings.TrimSpace(in.Email),
		Name:      strings.TrimSpace(in.Name),
		StudentID: strings.TrimSpace(in.StudentID),
		Role:      s.roleFor(userID, existing),
	}
	if existing != nil {
		u.CreatedAt = existing.CreatedAt
	}

	var fe FieldErrors
	if u.Name == "" {
		fe.add("name", "이름을 입력해주세요.")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || strings.ContainsAny(u.Email, "<> ") {
		fe.add("email", "올바른 이메일 주소를 입력해주세요.")
	}
	if u.Role == models.RoleStudent && u.StudentID == "" {
		fe.add("student_id", "학번을 입력해주세요.")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	if u.Role.IsStaff() {
		u.StudentID = ""
	}

	if err := s.users.UpsertUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalidErr("email", "이미 사용 중인 이메일입니다.", err)
		}
		return nil, fmt.Errorf("register %s: %w", userID, err)
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("role", string(u.Role)).
		Bool("created", existing == nil).
		Msg("Account registered")
	return u, nil
}

// Delete removes the actor's account and every reservation it owns. It
// returns the number of reservations removed.
func (s *AccountService) Delete(ctx context.Context, actor models.Actor) (int, error) {
	removed, err := s.users.DeleteUser(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("delete account %s: %w", actor.ID, err)
	}
	if removed > 0 {
		s.bus.Publish(events.Event{Type: events.ReservationDeleted, ActorID: actor.ID, Count: removed})
	}
	s.logger.Info().Str("user_id", actor.ID).Int("reservations", removed).Msg("Account deleted")
	return removed, nil
}
