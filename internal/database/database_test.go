package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, id string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@school.kr", Name: "User " + id, Role: role}
	require.NoError(t, db.UpsertUser(context.Background(), u))
	return u
}

func seedRoom(t *testing.T, db *DB, name string) *models.Room {
	t.Helper()
	r := &models.Room{Name: name, Capacity: 30, Location: "본관", Facilities: []string{"빔프로젝터"}, IsAvailable: true}
	require.NoError(t, db.CreateRoom(context.Background(), r))
	return r
}

func at(day time.Time, h, m int) time.Time {
	return kst.StartOfDay(day).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newReservation(userID, roomID string, start, end time.Time, status models.Status) models.Reservation {
	r := models.Reservation{
		UserID:    userID,
		RoomID:    roomID,
		StartTime: start,
		EndTime:   end,
		Purpose:   "동아리 활동",
		Attendees: []string{"김민수", "이영희"},
		Status:    status,
	}
	if status == models.StatusConfirmed {
		r.ApprovedBy = userID
	}
	return r
}
