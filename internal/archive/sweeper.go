// Package archive moves aged, approved reservations out of the live set.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
)

// DefaultRetention is how long a confirmed reservation stays live after its
// last update.
const DefaultRetention = 14 * 24 * time.Hour

// Store is the persistence the sweep needs.
type Store interface {
	ListConfirmedApproved(ctx context.Context) ([]models.Reservation, error)
	GetArchivedIDs(ctx context.Context, ids []string) (map[string]bool, error)
	CopyToArchive(ctx context.Context, records []models.ArchivedReservation) error
	DeleteReservations(ctx context.Context, ids []string) (int, error)
}

// Result counts what one sweep did. Warning is set when originals could not
// be removed after their copies were written.
type Result struct {
	Archived int             `json:"archived_count"`
	Deleted  int             `json:"deleted_count"`
	Warning  *PartialFailure `json:"-"`
}

// PartialFailure means the archive copy exists but the originals remain.
// Running the sweep again finishes the job.
type PartialFailure struct {
	Archived int
	Cause    error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("archived %d reservations but could not delete originals: %v", e.Archived, e.Cause)
}

func (e *PartialFailure) Unwrap() error { return e.Cause }

// Policy decides eligibility.
type Policy struct {
	Retention time.Duration
}

// Eligible reports whether r is confirmed, approved and untouched for longer
// than the retention period as of now.
func (p Policy) Eligible(r models.Reservation, now time.Time) bool {
	if r.Status != models.StatusConfirmed || r.ApprovedBy == "" {
		return false
	}
	ref := r.LastTouched()
	if ref.IsZero() {
		return false
	}
	return kst.In(ref).Before(kst.In(now).Add(-p.retention()))
}

func (p Policy) retention() time.Duration {
	if p.Retention <= 0 {
		return DefaultRetention
	}
	return p.Retention
}

// Sweeper runs the copy-then-delete sweep.
type Sweeper struct {
	store  Store
	policy Policy
	clock  kst.Clock
	logger zerolog.Logger
}

// NewSweeper creates a sweeper. A nil clock uses the wall clock.
func NewSweeper(store Store, policy Policy, clock kst.Clock, logger *zerolog.Logger) *Sweeper {
	if clock == nil {
		clock = kst.SystemClock
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "archive").Logger()
	}
	return &Sweeper{store: store, policy: policy, clock: clock, logger: l}
}

// Sweep archives every eligible reservation. A copy failure deletes nothing
// and is returned as an error. A delete failure after a successful copy is
// reported through Result.Warning with a nil error.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := kst.In(s.clock())

	live, err := s.store.ListConfirmedApproved(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list confirmed reservations: %w", err)
	}

	var eligible []models.Reservation
	for _, r := range live {
		if s.policy.Eligible(r, now) {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		s.logger.Debug().Int("live", len(live)).Msg("nothing to archive")
		return Result{}, nil
	}

	ids := make([]string, len(eligible))
	for i, r := range eligible {
		ids[i] = r.ID
	}
	already, err := s.store.GetArchivedIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("get archived ids: %w", err)
	}

	var copies []models.ArchivedReservation
	for _, r := range eligible {
		if already[r.ID] {
			continue
		}
		copies = append(copies, models.ArchivedReservation{Reservation: r, OriginalID: r.ID, ArchivedAt: now})
	}

	if len(copies) > 0 {
		if err := s.store.CopyToArchive(ctx, copies); err != nil {
			return Result{}, fmt.Errorf("copy to archive: %w", err)
		}
	}
	res := Result{Archived: len(copies)}

	// Originals whose copy already existed are leftovers of an earlier
	// partial sweep and are removed along with the new ones.
	deleted, err := s.store.DeleteReservations(ctx, ids)
	if err != nil {
		res.Warning = &PartialFailure{Archived: res.Archived, Cause: err}
		s.logger.Warn().Err(err).Int("archived", res.Archived).Msg("archive copy written but originals not deleted")
		return res, nil
	}
	res.Deleted = deleted

	s.logger.Info().
		Int("archived", res.Archived).
		Int("deleted", res.Deleted).
		Int("skipped_already_archived", len(eligible)-len(copies)).
		Msg("archive sweep finished")
	return res, nil
}

// IsPartialFailure reports whether err carries a PartialFailure.
func IsPartialFailure(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
