package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teukbyeolsil/internal/models"
)

// ListConfirmedApproved returns confirmed reservations that have an approver.
func (db *DB) ListConfirmedApproved(ctx context.Context) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, reservationSelect+`
		WHERE r.status = 'confirmed' AND r.approved_by IS NOT NULL AND r.approved_by <> ''
		ORDER BY r.start_time`)
	if err != nil {
		return nil, fmt.Errorf("list confirmed reservations: %w", err)
	}
	return collectReservations(rows)
}

// GetArchivedIDs reports which of ids already have an archive copy.
func (db *DB) GetArchivedIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for start := 0; start < len(ids); start += 500 {
		end := min(start+500, len(ids))
		chunk := ids[start:end]

		rows, err := db.QueryContext(ctx,
			`SELECT original_id FROM archived_reservations WHERE original_id IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("get archived ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = true
		}
		err = rows.Err()
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("get archived ids: %w", err)
		}
	}
	return out, nil
}

// CopyToArchive writes all records in one transaction. A record whose
// original is already archived is skipped, so the copy is idempotent.
func (db *DB) CopyToArchive(ctx context.Context, records []models.ArchivedReservation) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO archived_reservations (
			id, original_id, user_id, room_id, start_time, end_time, purpose, attendees, status,
			approved_by, approved_at, rejected_by, rejection_reason, created_at, updated_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(original_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range records {
		attendees, err := encodeList(a.Attendees)
		if err != nil {
			return err
		}
		original := a.OriginalID
		if original == "" {
			original = a.ID
		}
		_, err = stmt.ExecContext(ctx,
			uuid.NewString(), original, a.UserID, a.RoomID, ts(a.StartTime), ts(a.EndTime), a.Purpose, attendees,
			string(a.Status), nullString(a.ApprovedBy), nullTS(a.ApprovedAt), nullString(a.RejectedBy),
			nullString(a.RejectionReason), ts(a.CreatedAt), nullTS(a.UpdatedAt), ts(a.ArchivedAt),
		)
		if err != nil {
			return fmt.Errorf("archive reservation %s: %w", original, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteReservations removes the given live reservations and returns how many
// rows went away.
func (db *DB) DeleteReservations(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for start := 0; start < len(ids); start += 500 {
		end := min(start+500, len(ids))
		chunk := ids[start:end]
		res, err := tx.ExecContext(ctx,
			`DELETE FROM reservations WHERE id IN (`+placeholders(len(chunk))+`)`, stringArgs(chunk)...)
		if err != nil {
			return 0, fmt.Errorf("delete reservations: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// ListArchived returns archived reservations, newest archive first. A zero
// since returns everything.
func (db *DB) ListArchived(ctx context.Context, since time.Time) ([]models.ArchivedReservation, error) {
	q := `SELECT a.id, a.user_id, a.room_id, a.start_time, a.end_time, a.purpose, a.attendees, a.status,
			a.approved_by, a.approved_at, a.rejected_by, a.rejection_reason, a.created_at, a.updated_at,
			a.original_id, a.archived_at, COALESCE(rm.name, ''), COALESCE(u.name, '')
		FROM archived_reservations a
		LEFT JOIN rooms rm ON rm.id = a.room_id
		LEFT JOIN users u ON u.id = a.user_id`
	var args []interface{}
	if !since.IsZero() {
		q += ` WHERE a.archived_at >= ?`
		args = append(args, ts(since))
	}
	q += ` ORDER BY a.archived_at DESC, a.start_time`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list archived: %w", err)
	}
	defer rows.Close()

	var out []models.ArchivedReservation
	for rows.Next() {
		var (
			a          models.ArchivedReservation
			archivedAt string
		)
		if err := scanReservationFields(rows, &a.Reservation, &a.OriginalID, &archivedAt, &a.RoomName, &a.UserName); err != nil {
			return nil, fmt.Errorf("scan archived: %w", err)
		}
		if a.ArchivedAt, err = parseTS(archivedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
