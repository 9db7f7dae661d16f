// Package events is a small in-process pub/sub used to fan reservation and
// room changes out to metrics, caches and logs.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Type string

const (
	ReservationSubmitted Type = "reservation.submitted"
	ReservationApproved  Type = "reservation.approved"
	ReservationRejected  Type = "reservation.rejected"
	ReservationDeleted   Type = "reservation.deleted"
	ConflictDetected     Type = "reservation.conflict"
	RestrictionChanged   Type = "restriction.changed"
	RoomChanged          Type = "room.changed"
	NoticeChanged        Type = "notice.changed"
	ArchiveCompleted     Type = "archive.completed"
	RateLimited          Type = "ratelimit.hit"
)

// Event describes something that already happened.
type Event struct {
	Type           Type
	ActorID        string
	RoomID         string
	ReservationIDs []string
	// Status is the resulting reservation status, or the conflict stage for
	// ConflictDetected.
	Status    string
	Count     int
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewBus constructs an empty bus. Handler errors are logged to logger.
func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{subscribers: make(map[Type][]Handler), logger: logger}
}

// Subscribe registers a handler for the given event types.
func (b *Bus) Subscribe(handler Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. A nil bus drops the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Event handler failed")
		}
	}
}
