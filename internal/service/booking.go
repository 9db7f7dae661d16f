package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/availability"
	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/config"
	"teukbyeolsil/internal/conflict"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/lifecycle"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/recurrence"
	"teukbyeolsil/internal/slots"
	"teukbyeolsil/shared/access"
)

// BookingPolicy holds the tunable booking rules.
type BookingPolicy struct {
	Window               slots.Window
	RecurrenceWeeks      []int
	PurposeMinLength     int
	PurposeMaxLength     int
	SubmissionsPerMinute int
}

// PolicyFromConfig builds a BookingPolicy from the booking config section.
func PolicyFromConfig(cfg config.BookingConfig) (BookingPolicy, error) {
	w, err := cfg.Window()
	if err != nil {
		return BookingPolicy{}, err
	}
	return BookingPolicy{
		Window:               w,
		RecurrenceWeeks:      cfg.RecurrenceWeeks,
		PurposeMinLength:     cfg.PurposeMinLength,
		PurposeMaxLength:     cfg.PurposeMaxLength,
		SubmissionsPerMinute: cfg.SubmissionsPerMinute,
	}, nil
}

// BookingRequest is one submission, possibly recurring weekly.
type BookingRequest struct {
	RoomID    string      `json:"room_id"`
	Date      string      `json:"date"`
	Start     slots.Clock `json:"start_time"`
	End       slots.Clock `json:"end_time"`
	Purpose   string      `json:"purpose"`
	Attendees []string    `json:"attendees"`
	Recurring bool        `json:"is_recurring"`
	Weeks     int         `json:"recurring_weeks"`
}

// CheckResult is the outcome of an advisory check that found no conflict.
type CheckResult struct {
	Occurrences []conflict.Interval `json:"occurrences"`
	Status      models.Status       `json:"status"`
}

type BookingService struct {
	rooms        RoomRepository
	reservations ReservationRepository
	restrictions RestrictionRepository
	limiter      cache.Limiter
	bus          *events.Bus
	policy       BookingPolicy
	expander     *recurrence.Expander
	clock        kst.Clock
	logger       zerolog.Logger
}

func NewBookingService(
	rooms RoomRepository,
	reservations ReservationRepository,
	restrictions RestrictionRepository,
	limiter cache.Limiter,
	bus *events.Bus,
	policy BookingPolicy,
	clock kst.Clock,
	logger *zerolog.Logger,
) *BookingService {
	if clock == nil {
		clock = kst.SystemClock
	}
	if policy.Window.Step == 0 {
		policy.Window = slots.Default
	}
	if policy.PurposeMinLength <= 0 {
		policy.PurposeMinLength = 5
	}
	if policy.PurposeMaxLength <= 0 {
		policy.PurposeMaxLength = 500
	}
	return &BookingService{
		rooms:        rooms,
		reservations: reservations,
		restrictions: restrictions,
		limiter:      limiter,
		bus:          bus,
		policy:       policy,
		expander:     recurrence.NewExpander(policy.RecurrenceWeeks),
		clock:        clock,
		logger:       logger.With().Str("component", "booking").Logger(),
	}
}

// Window returns the operating window bookings are validated against.
func (s *BookingService) Window() slots.Window { return s.policy.Window }

// Availability builds the slot index of a room for one date.
func (s *BookingService) Availability(ctx context.Context, roomID string, date time.Time) (*availability.Index, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	day := kst.StartOfDay(date)
	existing, err := s.reservations.GetReservationsForRoom(ctx, roomID, day, day.AddDate(0, 0, 1), models.BlockingStatuses)
	if err != nil {
		return nil, fmt.Errorf("get reservations: %w", err)
	}
	restrictions, err := s.restrictions.GetActiveRestrictionsForRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get restrictions: %w", err)
	}
	return availability.Build(s.policy.Window, availability.Input{
		RoomID:       roomID,
		Date:         day,
		Reservations: existing,
		Restrictions: restrictions,
		Now:          s.clock(),
	}), nil
}

type plan struct {
	roomID      string
	purpose     string
	attendees   []string
	occurrences []conflict.Interval
}

func (s *BookingService) windowMessage(err error) string {
	if errors.Is(err, slots.ErrEndNotAfter) {
		return "종료 시간은 시작 시간 이후여야 합니다."
	}
	w := s.policy.Window
	return fmt.Sprintf("예약 시간은 %s부터 %s 사이에서 %d분 단위로 선택해주세요.", w.Open, w.Close, int(w.Step/time.Minute))
}

func cleanAttendees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// prepare validates req and expands it into its occurrences.
func (s *BookingService) prepare(ctx context.Context, req BookingRequest) (*plan, error) {
	var fe FieldErrors
	p := &plan{
		roomID:    strings.TrimSpace(req.RoomID),
		purpose:   strings.TrimSpace(req.Purpose),
		attendees: cleanAttendees(req.Attendees),
	}

	if p.roomID == "" {
		fe.add("room_id", "특별실을 선택해주세요.")
	}
	if n := utf8.RuneCountInString(p.purpose); n < s.policy.PurposeMinLength || n > s.policy.PurposeMaxLength {
		fe.add("purpose", fmt.Sprintf("사용 목적은 %d자 이상 %d자 이하로 입력해주세요.",
			s.policy.PurposeMinLength, s.policy.PurposeMaxLength))
	}

	var first conflict.Interval
	day, err := kst.ParseDate(req.Date)
	if err != nil {
		fe.add("date", "날짜 형식이 올바르지 않습니다.")
	} else {
		first = conflict.Interval{Start: req.Start.On(day), End: req.End.On(day)}
		if err := s.policy.Window.Validate(first.Start, first.End); err != nil {
			fe.add("time", s.windowMessage(err))
		}
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	if first.Start.Before(s.clock()) {
		return nil, invalidErr("start_time", "지난 시간은 예약할 수 없습니다.", availability.ErrPast)
	}

	p.occurrences, err = s.expander.Expand(first, req.Weeks, req.Recurring)
	if errors.Is(err, recurrence.ErrInvalidWeeks) {
		return nil, invalidErr("recurring_weeks",
			fmt.Sprintf("반복 주수는 %s 중 하나여야 합니다.", joinInts(s.expander.Allowed())), err)
	}
	if err != nil {
		return nil, invalidErr("time", s.windowMessage(err), err)
	}

	if _, err := s.rooms.GetRoom(ctx, p.roomID); err != nil {
		return nil, fmt.Errorf("get room %s: %w", p.roomID, err)
	}
	return p, nil
}

// advisory runs the pre-insert checks against a fresh snapshot: restricted
// and elapsed slots first, then overlaps.
func (s *BookingService) advisory(ctx context.Context, p *plan) error {
	span := conflict.Span(p.occurrences)
	existing, err := s.reservations.GetReservationsForRoom(ctx, p.roomID, span.Start, span.End, models.BlockingStatuses)
	if err != nil {
		return fmt.Errorf("get reservations: %w", err)
	}
	restrictions, err := s.restrictions.GetActiveRestrictionsForRoom(ctx, p.roomID)
	if err != nil {
		return fmt.Errorf("get restrictions: %w", err)
	}

	now := s.clock()
	for _, occ := range p.occurrences {
		ix := availability.Build(s.policy.Window, availability.Input{
			RoomID:       p.roomID,
			Date:         occ.Start,
			Reservations: existing,
			Restrictions: restrictions,
			Now:          now,
		})
		if err := ix.Check(occ.Start, occ.End); err != nil {
			if errors.Is(err, availability.ErrPast) {
				return invalidErr("start_time", "지난 시간은 예약할 수 없습니다.", err)
			}
			return err
		}
	}

	if ce := conflict.DetectSeries(conflict.StageAdvisory, p.occurrences, existing); ce != nil {
		s.publishConflict(ce)
		return ce
	}
	return nil
}

func (s *BookingService) publishConflict(ce *conflict.Error) {
	s.logger.Info().
		Str("stage", string(ce.Stage)).
		Str("room_id", ce.Conflicting.RoomID).
		Str("conflicting_id", ce.Conflicting.ID).
		Str("conflicting_status", string(ce.Status())).
		Msg("Booking conflict")
	s.bus.Publish(events.Event{
		Type:           events.ConflictDetected,
		RoomID:         ce.Conflicting.RoomID,
		ReservationIDs: []string{ce.Conflicting.ID},
		Status:         string(ce.Stage),
	})
}

// Check is the advisory pre-submit check. A nil error means the series
// looked free when checked; only Submit decides.
func (s *BookingService) Check(ctx context.Context, actor models.Actor, req BookingRequest) (*CheckResult, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.advisory(ctx, p); err != nil {
		return nil, err
	}
	return &CheckResult{Occurrences: p.occurrences, Status: lifecycle.InitialStatus(actor.Role)}, nil
}

// Submit validates, expands and stores a booking series. The advisory check
// runs first; the store repeats the overlap check atomically with the insert
// and its answer is final. The series is stored whole or not at all.
func (s *BookingService) Submit(ctx context.Context, actor models.Actor, req BookingRequest) ([]models.Reservation, error) {
	if err := s.allow(ctx, actor); err != nil {
		return nil, err
	}

	p, err := s.prepare(ctx, req)
	if err != nil {
		s.logger.Debug().Err(err).Str("user_id", actor.ID).Msg("Booking rejected by validation")
		return nil, err
	}
	if err := s.advisory(ctx, p); err != nil {
		return nil, err
	}

	now := s.clock()
	records := make([]models.Reservation, len(p.occurrences))
	for i, occ := range p.occurrences {
		r := models.Reservation{
			UserID:    actor.ID,
			RoomID:    p.roomID,
			StartTime: occ.Start,
			EndTime:   occ.End,
			Purpose:   p.purpose,
			Attendees: p.attendees,
			CreatedAt: now,
		}
		lifecycle.Initialize(&r, actor, now)
		records[i] = r
	}

	if err := s.reservations.InsertReservations(ctx, records); err != nil {
		if ce, ok := conflict.As(err); ok {
			s.publishConflict(ce)
			return nil, ce
		}
		return nil, fmt.Errorf("insert reservations: %w", err)
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	s.bus.Publish(events.Event{
		Type:           events.ReservationSubmitted,
		ActorID:        actor.ID,
		RoomID:         p.roomID,
		ReservationIDs: ids,
		Status:         string(records[0].Status),
	})
	s.logger.Info().
		Str("user_id", actor.ID).
		Str("room_id", p.roomID).
		Int("occurrences", len(records)).
		Str("status", string(records[0].Status)).
		Msg("Reservations created")
	return records, nil
}

func (s *BookingService) allow(ctx context.Context, actor models.Actor) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, actor.ID, s.policy.SubmissionsPerMinute, time.Minute)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rate limiter unavailable, allowing submission")
		return nil
	}
	if !ok {
		s.bus.Publish(events.Event{Type: events.RateLimited, ActorID: actor.ID})
		return ErrRateLimited
	}
	return nil
}

// ListMine returns the actor's reservations ordered by start.
func (s *BookingService) ListMine(ctx context.Context, actor models.Actor) ([]models.Reservation, error) {
	return s.reservations.ListReservations(ctx, models.ReservationFilter{UserID: actor.ID})
}

// Delete removes a reservation owned by actor, or any reservation when actor
// is staff.
func (s *BookingService) Delete(ctx context.Context, actor models.Actor, id string) error {
	r, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return fmt.Errorf("get reservation %s: %w", id, err)
	}
	if err := access.RequireOwnerOrStaff(actor, r.UserID); err != nil {
		return err
	}
	if err := s.reservations.DeleteReservation(ctx, id); err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}

	s.bus.Publish(events.Event{
		Type:           events.ReservationDeleted,
		ActorID:        actor.ID,
		RoomID:         r.RoomID,
		ReservationIDs: []string{id},
	})
	s.logger.Info().Str("id", id).Str("actor_id", actor.ID).Msg("Reservation deleted")
	return nil
}
