package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teukbyeolsil/internal/models"
)

// GetSystemNotice returns the singleton notice, creating an empty one on
// first access.
func (db *DB) GetSystemNotice(ctx context.Context) (*models.SystemNotice, error) {
	var (
		n         models.SystemNotice
		updatedAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT restricted_hours, notes, updated_at FROM system_notice WHERE id = 1`,
	).Scan(&n.RestrictedHours, &n.Notes, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return db.UpsertSystemNotice(ctx, models.SystemNotice{})
	}
	if err != nil {
		return nil, fmt.Errorf("get system notice: %w", err)
	}
	if n.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpsertSystemNotice writes the singleton notice.
func (db *DB) UpsertSystemNotice(ctx context.Context, n models.SystemNotice) (*models.SystemNotice, error) {
	n.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO system_notice (id, restricted_hours, notes, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			restricted_hours = excluded.restricted_hours,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		n.RestrictedHours, n.Notes, ts(n.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert system notice: %w", err)
	}
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}
