package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"teukbyeolsil/internal/models"
)

const roomColumns = `id, name, capacity, location, facilities, is_available, restricted_hours, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		r                    models.Room
		facilities           string
		restricted, notes    sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Capacity, &r.Location, &facilities, &r.IsAvailable,
		&restricted, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if r.Facilities, err = decodeList(facilities); err != nil {
		return nil, err
	}
	r.RestrictedHours = restricted.String
	r.Notes = notes.String
	if r.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateRoom inserts a new room. A blank ID is generated.
func (db *DB) CreateRoom(ctx context.Context, r *models.Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now

	facilities, err := encodeList(r.Facilities)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Capacity, r.Location, facilities, r.IsAvailable,
		nullString(r.RestrictedHours), nullString(r.Notes), ts(now), ts(now),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("room %q: %w", r.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// UpdateRoom rewrites the editable fields of a room. Availability is owned
// by restrictions and is left alone.
func (db *DB) UpdateRoom(ctx context.Context, r *models.Room) error {
	facilities, err := encodeList(r.Facilities)
	if err != nil {
		return err
	}
	r.UpdatedAt = time.Now()
	res, err := db.ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, capacity = ?, location = ?, facilities = ?, restricted_hours = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Capacity, r.Location, facilities, nullString(r.RestrictedHours), nullString(r.Notes), ts(r.UpdatedAt), r.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("room %q: %w", r.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update room: %w", err)
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

// UpsertRoomByName creates the room or refreshes its descriptive fields,
// keyed by name. Used to seed rooms from rooms.yaml.
func (db *DB) UpsertRoomByName(ctx context.Context, r *models.Room) error {
	facilities, err := encodeList(r.Facilities)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = db.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			capacity = excluded.capacity,
			location = excluded.location,
			facilities = excluded.facilities,
			restricted_hours = excluded.restricted_hours,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		uuid.NewString(), r.Name, r.Capacity, r.Location, facilities,
		nullString(r.RestrictedHours), nullString(r.Notes), ts(now), ts(now),
	)
	if err != nil {
		return fmt.Errorf("upsert room %q: %w", r.Name, err)
	}
	return nil
}

// GetRoom returns the room with id or ErrNotFound.
func (db *DB) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	r, err := scanRoom(db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// ListRooms returns every room ordered by name.
func (db *DB) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteRoom removes a room that has no reservations. The count check and
// the delete share one transaction.
func (db *DB) DeleteRoom(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE room_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("count reservations: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d", ErrRoomInUse, count)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
