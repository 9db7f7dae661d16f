package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/restriction"
	"teukbyeolsil/shared/access"
)

// RestrictionRequest declares a blackout period for a room.
type RestrictionRequest struct {
	RoomID string
	Period restriction.Period
	Reason string
}

type RestrictionService struct {
	restrictions RestrictionRepository
	cache        *cache.Cache
	bus          *events.Bus
	logger       zerolog.Logger
}

func NewRestrictionService(restrictions RestrictionRepository, c *cache.Cache, bus *events.Bus, logger *zerolog.Logger) *RestrictionService {
	return &RestrictionService{
		restrictions: restrictions,
		cache:        c,
		bus:          bus,
		logger:       logger.With().Str("component", "restriction").Logger(),
	}
}

func periodMessage(err error) string {
	switch {
	case errors.Is(err, restriction.ErrMissingDates):
		return "시작 날짜를 입력해주세요."
	case errors.Is(err, restriction.ErrDateOrder):
		return "종료 날짜는 시작 날짜 이후여야 합니다."
	case errors.Is(err, restriction.ErrWindowOrder):
		return "종료 시간은 시작 시간 이후여야 합니다."
	}
	return "제한 기간 유형이 올바르지 않습니다."
}

// Create stores req as the room's only active restriction.
func (s *RestrictionService) Create(ctx context.Context, actor models.Actor, req RestrictionRequest) (*models.RoomRestriction, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, invalid("room_id", "특별실을 선택해주세요.")
	}
	if err := req.Period.Validate(); err != nil {
		return nil, invalidErr("period", periodMessage(err), err)
	}

	rr := &models.RoomRestriction{
		RoomID:          strings.TrimSpace(req.RoomID),
		Period:          req.Period,
		RestrictedHours: req.Period.String(),
		Reason:          strings.TrimSpace(req.Reason),
		CreatedBy:       actor.ID,
	}
	if err := s.restrictions.CreateRestriction(ctx, rr); err != nil {
		return nil, fmt.Errorf("create restriction: %w", err)
	}
	s.changed(ctx, actor, rr.RoomID)
	s.logger.Info().
		Str("room_id", rr.RoomID).
		Str("period", rr.RestrictedHours).
		Str("actor_id", actor.ID).
		Msg("Restriction created")
	return rr, nil
}

// SetActive activates or deactivates a restriction.
func (s *RestrictionService) SetActive(ctx context.Context, actor models.Actor, id string, active bool) (*models.RoomRestriction, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	rr, err := s.restrictions.SetRestrictionActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set restriction %s active=%t: %w", id, active, err)
	}
	s.changed(ctx, actor, rr.RoomID)
	return rr, nil
}

func (s *RestrictionService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := access.RequireStaff(actor); err != nil {
		return err
	}
	rr, err := s.restrictions.GetRestriction(ctx, id)
	if err != nil {
		return fmt.Errorf("get restriction %s: %w", id, err)
	}
	if err := s.restrictions.DeleteRestriction(ctx, id); err != nil {
		return fmt.Errorf("delete restriction %s: %w", id, err)
	}
	s.changed(ctx, actor, rr.RoomID)
	return nil
}

// List returns restrictions, only the active ones when activeOnly is set.
func (s *RestrictionService) List(ctx context.Context, actor models.Actor, activeOnly bool) ([]models.RoomRestriction, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	return s.restrictions.ListRestrictions(ctx, activeOnly)
}

// ListActive returns the active restrictions.
func (s *RestrictionService) ListActive(ctx context.Context, actor models.Actor) ([]models.RoomRestriction, error) {
	return s.List(ctx, actor, true)
}

// changed drops the cached room list, whose availability flags moved.
func (s *RestrictionService) changed(ctx context.Context, actor models.Actor, roomID string) {
	s.cache.Invalidate(ctx, cache.KeyRooms)
	s.bus.Publish(events.Event{Type: events.RestrictionChanged, ActorID: actor.ID, RoomID: roomID})
}
