package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/archive"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
	"teukbyeolsil/shared/audit"
)

// Sweeper runs one archival sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (archive.Result, error)
}

type ArchiveService struct {
	sweeper  Sweeper
	archived ArchiveRepository
	exporter *audit.Exporter
	bus      *events.Bus
	logger   zerolog.Logger
}

func NewArchiveService(sweeper Sweeper, archived ArchiveRepository, exporter *audit.Exporter, bus *events.Bus, logger *zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		sweeper:  sweeper,
		archived: archived,
		exporter: exporter,
		bus:      bus,
		logger:   logger.With().Str("component", "archive").Logger(),
	}
}

// Sweep archives aged, approved reservations. A Result with a Warning and a
// nil error means the copies exist but some originals are still live.
func (s *ArchiveService) Sweep(ctx context.Context, actor models.Actor) (archive.Result, error) {
	if err := access.RequireStaff(actor); err != nil {
		return archive.Result{}, err
	}
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return res, fmt.Errorf("archive sweep: %w", err)
	}
	if res.Archived > 0 || res.Deleted > 0 {
		s.bus.Publish(events.Event{Type: events.ArchiveCompleted, ActorID: actor.ID, Count: res.Archived})
	}
	return res, nil
}

// List returns archived reservations archived at or after since.
func (s *ArchiveService) List(ctx context.Context, actor models.Actor, since time.Time) ([]models.ArchivedReservation, error) {
	if err := access.RequireStaff(actor); err != nil {
		return nil, err
	}
	return s.archived.ListArchived(ctx, since)
}

// Export writes the archive as an xlsx workbook to w.
func (s *ArchiveService) Export(ctx context.Context, actor models.Actor, since time.Time, w io.Writer) (int, error) {
	if err := access.RequireStaff(actor); err != nil {
		return 0, err
	}
	if s.exporter == nil {
		return 0, fmt.Errorf("archive export not configured")
	}
	return s.exporter.ExportArchive(ctx, since, w)
}

// ExportTables writes a snapshot of the live tables as an xlsx workbook to w.
func (s *ArchiveService) ExportTables(ctx context.Context, actor models.Actor, w io.Writer) error {
	if err := access.RequireStaff(actor); err != nil {
		return err
	}
	if s.exporter == nil {
		return fmt.Errorf("table export not configured")
	}
	return s.exporter.ExportTables(ctx, w)
}
