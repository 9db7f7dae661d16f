package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/restriction"
	"teukbyeolsil/internal/slots"
)

const restrictionSelect = `SELECT rr.id, rr.room_id, rr.period_kind, rr.start_date, rr.end_date, rr.start_clock, rr.end_clock,
		rr.restricted_hours, rr.reason, rr.is_active, rr.created_by, rr.created_at, rr.updated_at, COALESCE(rm.name, '')
	FROM room_restrictions rr
	LEFT JOIN rooms rm ON rm.id = rr.room_id`

func scanRestriction(row rowScanner) (*models.RoomRestriction, error) {
	var (
		rr                   models.RoomRestriction
		kind                 string
		startDate, endDate   sql.NullString
		startClock, endClock sql.NullInt64
		reason               sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&rr.ID, &rr.RoomID, &kind, &startDate, &endDate, &startClock, &endClock,
		&rr.RestrictedHours, &reason, &rr.IsActive, &rr.CreatedBy, &createdAt, &updatedAt, &rr.RoomName); err != nil {
		return nil, err
	}

	p := restriction.Period{Kind: restriction.Kind(kind)}
	if startDate.Valid {
		d, err := kst.ParseDate(startDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse start_date: %w", err)
		}
		p.StartDate = d
	}
	if endDate.Valid {
		d, err := kst.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse end_date: %w", err)
		}
		p.EndDate = d
	}
	if startClock.Valid && endClock.Valid {
		p.Window = &restriction.TimeWindow{From: slots.Clock(startClock.Int64), To: slots.Clock(endClock.Int64)}
	}
	rr.Period = p
	rr.Reason = reason.String

	var err error
	if rr.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, err
	}
	if rr.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, err
	}
	return &rr, nil
}

func collectRestrictions(rows *sql.Rows) ([]models.RoomRestriction, error) {
	defer rows.Close()
	var out []models.RoomRestriction
	for rows.Next() {
		rr, err := scanRestriction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}
		out = append(out, *rr)
	}
	return out, rows.Err()
}

func dateArg(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: kst.In(t).Format(time.DateOnly), Valid: true}
}

func windowArgs(w *restriction.TimeWindow) (sql.NullInt64, sql.NullInt64) {
	if w == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(w.From), Valid: true}, sql.NullInt64{Int64: int64(w.To), Valid: true}
}

// syncRoomAvailability marks the room unavailable while it has an active restriction.
func syncRoomAvailability(ctx context.Context, tx *sql.Tx, roomID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rooms
		SET is_available = NOT EXISTS (
				SELECT 1 FROM room_restrictions WHERE room_id = ? AND is_active = 1
			),
			updated_at = ?
		WHERE id = ?`, roomID, ts(now), roomID)
	if err != nil {
		return fmt.Errorf("sync room availability: %w", err)
	}
	return nil
}

// CreateRestriction deactivates any active restriction of the room, stores
// rr as the active one and marks the room unavailable, all in one transaction.
func (db *DB) CreateRestriction(ctx context.Context, rr *models.RoomRestriction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, rr.RoomID).Scan(&exists); err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("room %s: %w", rr.RoomID, ErrNotFound)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE room_restrictions SET is_active = 0, updated_at = ?
		WHERE room_id = ? AND is_active = 1`, ts(now), rr.RoomID); err != nil {
		return fmt.Errorf("deactivate previous restrictions: %w", err)
	}

	if rr.ID == "" {
		rr.ID = uuid.NewString()
	}
	rr.IsActive = true
	rr.CreatedAt, rr.UpdatedAt = now, now
	from, to := windowArgs(rr.Period.Window)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO room_restrictions (
			id, room_id, period_kind, start_date, end_date, start_clock, end_clock,
			restricted_hours, reason, is_active, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		rr.ID, rr.RoomID, string(rr.Period.Kind), dateArg(rr.Period.StartDate), dateArg(rr.Period.EndDate), from, to,
		rr.RestrictedHours, nullString(rr.Reason), rr.CreatedBy, ts(now), ts(now),
	)
	if err != nil {
		return fmt.Errorf("insert restriction: %w", err)
	}

	if err := syncRoomAvailability(ctx, tx, rr.RoomID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// SetRestrictionActive toggles a restriction and the room's availability
// with it. Activating one deactivates the room's other restrictions.
func (db *DB) SetRestrictionActive(ctx context.Context, id string, active bool) (*models.RoomRestriction, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var roomID string
	err = tx.QueryRowContext(ctx, `SELECT room_id FROM room_restrictions WHERE id = ?`, id).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get restriction: %w", err)
	}

	now := time.Now()
	if active {
		if _, err := tx.ExecContext(ctx, `
			UPDATE room_restrictions SET is_active = 0, updated_at = ?
			WHERE room_id = ? AND is_active = 1 AND id <> ?`, ts(now), roomID, id); err != nil {
			return nil, fmt.Errorf("deactivate other restrictions: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE room_restrictions SET is_active = ?, updated_at = ? WHERE id = ?`, active, ts(now), id); err != nil {
		return nil, fmt.Errorf("toggle restriction: %w", err)
	}
	if err := syncRoomAvailability(ctx, tx, roomID, now); err != nil {
		return nil, err
	}

	rr, err := scanRestriction(tx.QueryRowContext(ctx, restrictionSelect+` WHERE rr.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload restriction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rr, nil
}

// DeleteRestriction removes a restriction and restores the room's
// availability if nothing else restricts it.
func (db *DB) DeleteRestriction(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var roomID string
	err = tx.QueryRowContext(ctx, `SELECT room_id FROM room_restrictions WHERE id = ?`, id).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get restriction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_restrictions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete restriction: %w", err)
	}
	if err := syncRoomAvailability(ctx, tx, roomID, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRestriction returns one restriction or ErrNotFound.
func (db *DB) GetRestriction(ctx context.Context, id string) (*models.RoomRestriction, error) {
	rr, err := scanRestriction(db.QueryRowContext(ctx, restrictionSelect+` WHERE rr.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get restriction: %w", err)
	}
	return rr, nil
}

// GetActiveRestrictionsForRoom returns the active restrictions of roomID.
func (db *DB) GetActiveRestrictionsForRoom(ctx context.Context, roomID string) ([]models.RoomRestriction, error) {
	rows, err := db.QueryContext(ctx, restrictionSelect+`
		WHERE rr.room_id = ? AND rr.is_active = 1
		ORDER BY rr.created_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list active restrictions: %w", err)
	}
	return collectRestrictions(rows)
}

// ListRestrictions returns restrictions newest first, optionally only active ones.
func (db *DB) ListRestrictions(ctx context.Context, activeOnly bool) ([]models.RoomRestriction, error) {
	q := restrictionSelect
	if activeOnly {
		q += ` WHERE rr.is_active = 1`
	}
	q += ` ORDER BY rr.created_at DESC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list restrictions: %w", err)
	}
	return collectRestrictions(rows)
}
