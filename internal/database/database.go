package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the SQLite handle and implements every store the services use.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrNotFound  = errors.New("not found")
	ErrRoomInUse = errors.New("room has reservations")
	ErrDuplicate = errors.New("already exists")
)

// NewDB opens (creating if needed) the database at path and applies the schema.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// _txlock=immediate makes every transaction take the write lock at BEGIN,
	// so check-then-insert sequences never interleave.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path is the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('student', 'teacher', 'admin')),
			student_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity > 0),
			location TEXT NOT NULL DEFAULT '',
			facilities TEXT NOT NULL DEFAULT '[]',
			is_available BOOLEAN NOT NULL DEFAULT 1,
			restricted_hours TEXT,
			notes TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			purpose TEXT NOT NULL,
			attendees TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected')),
			approved_by TEXT,
			approved_at TEXT,
			rejected_by TEXT,
			rejection_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT,
			CHECK (end_time > start_time),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_time ON reservations(room_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE TABLE IF NOT EXISTS room_restrictions (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			period_kind TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			start_clock INTEGER,
			end_clock INTEGER,
			restricted_hours TEXT NOT NULL,
			reason TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_room_restrictions_room ON room_restrictions(room_id, is_active)`,
		`CREATE TABLE IF NOT EXISTS archived_reservations (
			id TEXT PRIMARY KEY,
			original_id TEXT UNIQUE NOT NULL,
			user_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			purpose TEXT NOT NULL,
			attendees TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			approved_by TEXT,
			approved_at TEXT,
			rejected_by TEXT,
			rejection_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT,
			archived_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_notice (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			restricted_hours TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(q), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Timestamps are stored as fixed-width UTC text so string comparison in SQL
// orders them correctly.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func nullTS(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTS(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTS(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// HealthCheck pings the database for readiness checks.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
