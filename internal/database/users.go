package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teukbyeolsil/internal/models"
)

// UpsertUser inserts the user or refreshes its profile fields.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, student_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			role = excluded.role,
			student_id = excluded.student_id,
			updated_at = excluded.updated_at`,
		u.ID, u.Email, u.Name, string(u.Role), nullString(u.StudentID), ts(u.CreatedAt), ts(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user email %q: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user with id or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		u                    models.User
		role                 string
		studentID            sql.NullString
		createdAt, updatedAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, email, name, role, student_id, created_at, updated_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &role, &studentID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Role = models.Role(role)
	u.StudentID = studentID.String
	if u.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the account and, through the foreign key cascade, every
// reservation it owns. It returns the number of reservations removed.
func (db *DB) DeleteUser(ctx context.Context, id string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE user_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user reservations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(removed), nil
}
