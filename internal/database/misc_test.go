package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/config"
	"teukbyeolsil/internal/models"
)

func TestSystemNotice_GetOrCreateThenUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.GetSystemNotice(ctx)
	require.NoError(t, err)
	assert.Empty(t, n.RestrictedHours)
	assert.Empty(t, n.Notes)

	_, err = db.UpsertSystemNotice(ctx, models.SystemNotice{RestrictedHours: "평일 18:00 이후 사용 불가", Notes: "사용 후 정리"})
	require.NoError(t, err)
	_, err = db.UpsertSystemNotice(ctx, models.SystemNotice{RestrictedHours: "없음", Notes: "사용 후 정리"})
	require.NoError(t, err)

	n, err = db.GetSystemNotice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "없음", n.RestrictedHours)

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM system_notice`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestDeleteUser_CascadesReservations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	student := seedUser(t, db, "s1", models.RoleStudent)
	other := seedUser(t, db, "s2", models.RoleStudent)
	room := seedRoom(t, db, "과학실")

	require.NoError(t, db.InsertReservations(ctx, []models.Reservation{
		newReservation(student.ID, room.ID, at(day, 10, 0), at(day, 11, 0), models.StatusPending),
		newReservation(student.ID, room.ID, at(day, 12, 0), at(day, 13, 0), models.StatusPending),
		newReservation(other.ID, room.ID, at(day, 14, 0), at(day, 15, 0), models.StatusPending),
	}))

	removed, err := db.DeleteUser(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = db.GetUser(ctx, student.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	left, err := db.ListReservations(ctx, models.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].UserID)

	_, err = db.DeleteUser(ctx, student.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := seedUser(t, db, "s1", models.RoleStudent)
	u.StudentID = "20301"
	u.Role = models.RoleTeacher
	require.NoError(t, db.UpsertUser(ctx, u))

	got, err := db.GetUser(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, got.Role)
	assert.Equal(t, "20301", got.StudentID)
}

func TestGetTableData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRoom(t, db, "과학실")

	names, err := db.GetTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "rooms")

	data, columns, err := db.GetTableData(ctx, "rooms")
	require.NoError(t, err)
	assert.Contains(t, columns, "name")
	require.Len(t, data, 1)
	assert.Equal(t, "과학실", data[0]["name"])

	_, _, err = db.GetTableData(ctx, "sqlite_master; DROP TABLE rooms")
	assert.Error(t, err)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	seedRoom(t, db, "과학실")
	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.New(io.Discard)

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 7}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	stale := filepath.Join(dir, "backup_old.db")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, path)
}
