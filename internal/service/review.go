package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/lifecycle"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
)

// ReviewService lets staff approve or reject pending reservations.
type ReviewService struct {
	reservations ReservationRepository
	machine      *lifecycle.Machine
	bus          *events.Bus
	clock        kst.Clock
	logger       zerolog.Logger
}

func NewReviewService(reservations ReservationRepository, bus *events.Bus, clock kst.Clock, logger *zerolog.Logger) *ReviewService {
	if clock == nil {
		clock = kst.SystemClock
	}
	return &ReviewService{
		reservations: reservations,
		machine:      lifecycle.New(),
		bus:          bus,
		clock:        clock,
		logger:       logger.With().Str("component", "review").Logger(),
	}
}

// transitionError turns lifecycle failures into caller-facing errors.
func transitionError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrNotAuthorized):
		return &access.DeniedError{Reason: access.MessageStaffOnly}
	case errors.Is(err, lifecycle.ErrReasonRequired):
		return invalidErr("reason", "거절 사유를 입력해주세요.", err)
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return invalidErr("status", "대기중인 예약만 승인하거나 거절할 수 있습니다.", err)
	}
	return err
}

// Approve confirms a pending reservation.
func (s *ReviewService) Approve(ctx context.Context, actor models.Actor, id string) (*models.Reservation, error) {
	return s.apply(ctx, actor, id, events.ReservationApproved, func(r models.Reservation) (lifecycle.Patch, error) {
		return s.machine.Approve(r, actor, s.clock())
	})
}

// Reject rejects a pending reservation. reason must not be blank.
func (s *ReviewService) Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.Reservation, error) {
	return s.apply(ctx, actor, id, events.ReservationRejected, func(r models.Reservation) (lifecycle.Patch, error) {
		return s.machine.Reject(r, actor, reason, s.clock())
	})
}

func (s *ReviewService) apply(
	ctx context.Context,
	actor models.Actor,
	id string,
	event events.Type,
	build func(models.Reservation) (lifecycle.Patch, error),
) (*models.Reservation, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	r, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}

	patch, err := build(*r)
	if err != nil {
		return nil, transitionError(err)
	}
	if err := s.reservations.UpdateReservationStatus(ctx, patch); err != nil {
		if errors.Is(err, lifecycle.ErrIllegalTransition) {
			return nil, transitionError(err)
		}
		return nil, fmt.Errorf("update reservation %s: %w", id, err)
	}
	patch.Apply(r)

	s.bus.Publish(events.Event{
		Type:           event,
		ActorID:        actor.ID,
		RoomID:         r.RoomID,
		ReservationIDs: []string{r.ID},
		Status:         string(r.Status),
	})
	s.logger.Info().
		Str("id", r.ID).
		Str("actor_id", actor.ID).
		Str("status", string(r.Status)).
		Msg("Reservation reviewed")
	return r, nil
}

// ListPending returns reservations waiting for a decision.
func (s *ReviewService) ListPending(ctx context.Context, actor models.Actor) ([]models.Reservation, error) {
	return s.ListAll(ctx, actor, models.ReservationFilter{Statuses: []models.Status{models.StatusPending}})
}

// ListAll returns reservations matching filter.
func (s *ReviewService) ListAll(ctx context.Context, actor models.Actor, filter models.ReservationFilter) ([]models.Reservation, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	return s.reservations.ListReservations(ctx, filter)
}
