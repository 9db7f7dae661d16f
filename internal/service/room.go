package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
)

// RoomInput is the editable part of a room.
type RoomInput struct {
	Name            string   `json:"name"`
	Capacity        int      `json:"capacity"`
	Location        string   `json:"location"`
	Facilities      []string `json:"facilities"`
	RestrictedHours string   `json:"restricted_hours"`
	Notes           string   `json:"notes"`
}

func (in RoomInput) validate() error {
	var fe FieldErrors
	if strings.TrimSpace(in.Name) == "" {
		fe.add("name", "특별실 이름을 입력해주세요.")
	}
	if in.Capacity <= 0 {
		fe.add("capacity", "수용 인원은 1명 이상이어야 합니다.")
	}
	return fe.err()
}

func (in RoomInput) apply(r *models.Room) {
	r.Name = strings.TrimSpace(in.Name)
	r.Capacity = in.Capacity
	r.Location = strings.TrimSpace(in.Location)
	r.Facilities = cleanAttendees(in.Facilities)
	r.RestrictedHours = strings.TrimSpace(in.RestrictedHours)
	r.Notes = strings.TrimSpace(in.Notes)
}

type RoomService struct {
	rooms  RoomRepository
	cache  *cache.Cache
	bus    *events.Bus
	logger zerolog.Logger
}

func NewRoomService(rooms RoomRepository, c *cache.Cache, bus *events.Bus, logger *zerolog.Logger) *RoomService {
	return &RoomService{
		rooms:  rooms,
		cache:  c,
		bus:    bus,
		logger: logger.With().Str("component", "rooms").Logger(),
	}
}

// List returns every room, from the cache when possible.
func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	return cache.Fetch(ctx, s.cache, cache.KeyRooms, s.rooms.ListRooms)
}

func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	return s.rooms.GetRoom(ctx, id)
}

func (s *RoomService) Create(ctx context.Context, actor models.Actor, in RoomInput) (*models.Room, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	r := &models.Room{IsAvailable: true}
	in.apply(r)
	if err := s.rooms.CreateRoom(ctx, r); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalidErr("name", "같은 이름의 특별실이 이미 있습니다.", err)
		}
		return nil, fmt.Errorf("create room: %w", err)
	}
	s.changed(ctx, actor, r.ID)
	return r, nil
}

func (s *RoomService) Update(ctx context.Context, actor models.Actor, id string, in RoomInput) (*models.Room, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	r, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	in.apply(r)
	if err := s.rooms.UpdateRoom(ctx, r); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, invalidErr("name", "같은 이름의 특별실이 이미 있습니다.", err)
		}
		return nil, fmt.Errorf("update room %s: %w", id, err)
	}
	s.changed(ctx, actor, id)
	return r, nil
}

// Delete removes a room that has no reservations.
func (s *RoomService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := access.RequireStaff(actor); err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	s.changed(ctx, actor, id)
	s.logger.Info().Str("room_id", id).Str("actor_id", actor.ID).Msg("Room deleted")
	return nil
}

func (s *RoomService) changed(ctx context.Context, actor models.Actor, id string) {
	s.cache.Invalidate(ctx, cache.KeyRooms)
	s.bus.Publish(events.Event{Type: events.RoomChanged, ActorID: actor.ID, RoomID: id})
}
