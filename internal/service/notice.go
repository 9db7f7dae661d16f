package service

import (
	"context"
	"fmt"
	"strings"

	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
)

type NoticeService struct {
	notices NoticeRepository
	cache   *cache.Cache
	bus     *events.Bus
}

func NewNoticeService(notices NoticeRepository, c *cache.Cache, bus *events.Bus) *NoticeService {
	return &NoticeService{notices: notices, cache: c, bus: bus}
}

func (s *NoticeService) Get(ctx context.Context) (*models.SystemNotice, error) {
	return cache.Fetch(ctx, s.cache, cache.KeyNotice, s.notices.GetSystemNotice)
}

func (s *NoticeService) Update(ctx context.Context, actor models.Actor, n models.SystemNotice) (*models.SystemNotice, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	n.RestrictedHours = strings.TrimSpace(n.RestrictedHours)
	n.Notes = strings.TrimSpace(n.Notes)
	out, err := s.notices.UpsertSystemNotice(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("update notice: %w", err)
	}
	s.cache.Invalidate(ctx, cache.KeyNotice)
	s.bus.Publish(events.Event{Type: events.NoticeChanged, ActorID: actor.ID})
	return out, nil
}
