package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"teukbyeolsil/internal/conflict"
	"teukbyeolsil/internal/lifecycle"
	"teukbyeolsil/internal/models"
)

const reservationColumns = `r.id, r.user_id, r.room_id, r.start_time, r.end_time, r.purpose, r.attendees, r.status,
	r.approved_by, r.approved_at, r.rejected_by, r.rejection_reason, r.created_at, r.updated_at`

const reservationSelect = `SELECT ` + reservationColumns + `, COALESCE(rm.name, ''), COALESCE(u.name, '')
	FROM reservations r
	LEFT JOIN rooms rm ON rm.id = r.room_id
	LEFT JOIN users u ON u.id = r.user_id`

// scanReservationFields scans the reservation columns followed by extra.
func scanReservationFields(row rowScanner, r *models.Reservation, extra ...interface{}) error {
	var (
		start, end, createdAt, attendees, status string
		approvedBy, approvedAt, rejectedBy       sql.NullString
		rejectionReason, updatedAt               sql.NullString
	)
	dest := []interface{}{&r.ID, &r.UserID, &r.RoomID, &start, &end, &r.Purpose, &attendees, &status,
		&approvedBy, &approvedAt, &rejectedBy, &rejectionReason, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	var err error
	if r.StartTime, err = parseTS(start); err != nil {
		return err
	}
	if r.EndTime, err = parseTS(end); err != nil {
		return err
	}
	if r.CreatedAt, err = parseTS(createdAt); err != nil {
		return err
	}
	if r.UpdatedAt, err = parseNullTS(updatedAt); err != nil {
		return err
	}
	if r.ApprovedAt, err = parseNullTS(approvedAt); err != nil {
		return err
	}
	if r.Attendees, err = decodeList(attendees); err != nil {
		return err
	}
	r.Status = models.Status(status)
	r.ApprovedBy = approvedBy.String
	r.RejectedBy = rejectedBy.String
	r.RejectionReason = rejectionReason.String
	return nil
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	if err := scanReservationFields(row, &r, &r.RoomName, &r.UserName); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func statusArgs(statuses []models.Status) []interface{} {
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

// GetReservation returns the reservation with id or ErrNotFound.
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// GetReservationsForRoom returns reservations of roomID intersecting
// [from, to) with one of statuses, ordered by start time.
func (db *DB) GetReservationsForRoom(ctx context.Context, roomID string, from, to time.Time, statuses []models.Status) ([]models.Reservation, error) {
	return db.ListReservations(ctx, models.ReservationFilter{RoomID: roomID, From: from, To: to, Statuses: statuses})
}

// ListReservations returns reservations matching filter, ordered by start time.
// From/To select reservations intersecting [From, To).
func (db *DB) ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.RoomID != "" {
		where = append(where, "r.room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.UserID != "" {
		where = append(where, "r.user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "r.status IN ("+placeholders(len(f.Statuses))+")")
		args = append(args, statusArgs(f.Statuses)...)
	}
	if !f.To.IsZero() {
		where = append(where, "r.start_time < ?")
		args = append(args, ts(f.To))
	}
	if !f.From.IsZero() {
		where = append(where, "r.end_time > ?")
		args = append(args, ts(f.From))
	}

	q := reservationSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY r.start_time, r.id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}

// InsertReservations stores a series atomically. Inside one write
// transaction every record is checked against the pending and confirmed
// reservations of its room (including records inserted earlier in the same
// series) and the first overlap aborts the whole series with a
// *conflict.Error at the authoritative stage.
func (db *DB) InsertReservations(ctx context.Context, records []models.Reservation) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for i := range records {
		r := &records[i]

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, r.RoomID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check room: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("room %s: %w", r.RoomID, ErrNotFound)
		}

		var existing models.Reservation
		err = scanReservationFields(tx.QueryRowContext(ctx, `
			SELECT `+reservationColumns+`
			FROM reservations r
			WHERE r.room_id = ? AND r.status IN ('pending', 'confirmed')
				AND r.start_time < ? AND r.end_time > ?
			ORDER BY CASE r.status WHEN 'confirmed' THEN 0 ELSE 1 END, r.start_time
			LIMIT 1`,
			r.RoomID, ts(r.EndTime), ts(r.StartTime),
		), &existing)
		if err == nil {
			return &conflict.Error{
				Stage:       conflict.StageAuthoritative,
				Occurrence:  i,
				Candidate:   conflict.Interval{Start: r.StartTime, End: r.EndTime},
				Conflicting: existing,
			}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check overlap: %w", err)
		}

		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		attendees, err := encodeList(r.Attendees)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (
				id, user_id, room_id, start_time, end_time, purpose, attendees, status,
				approved_by, approved_at, rejected_by, rejection_reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.UserID, r.RoomID, ts(r.StartTime), ts(r.EndTime), r.Purpose, attendees, string(r.Status),
			nullString(r.ApprovedBy), nullTS(r.ApprovedAt), nullString(r.RejectedBy), nullString(r.RejectionReason),
			ts(r.CreatedAt), nullTS(r.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateReservationStatus writes a lifecycle patch as one UPDATE guarded by
// the expected current status. If the row moved on in the meantime nothing
// is written and lifecycle.ErrIllegalTransition is returned.
func (db *DB) UpdateReservationStatus(ctx context.Context, p lifecycle.Patch) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, approved_by = ?, approved_at = ?, rejected_by = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(p.To), nullString(p.ApprovedBy), nullTS(p.ApprovedAt), nullString(p.RejectedBy),
		nullString(p.RejectionReason), ts(p.UpdatedAt), p.ID, string(p.From),
	)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, p.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reload reservation: %w", err)
	}
	return fmt.Errorf("%w: reservation is %s", lifecycle.ErrIllegalTransition, current)
}

// DeleteReservation removes one reservation.
func (db *DB) DeleteReservation(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
