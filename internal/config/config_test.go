package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/slots"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_REDIS_ADDR", "localhost:6380")
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "db", "app.db")+`
redis:
  enabled: true
  address: ${TEST_REDIS_ADDR}
booking:
  recurrence_weeks: [2, 4]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6380", cfg.Redis.Address)
	assert.Equal(t, []int{2, 4}, cfg.Booking.RecurrenceWeeks)
	assert.Equal(t, 5, cfg.Booking.PurposeMinLength)
	assert.Equal(t, 500, cfg.Booking.PurposeMaxLength)
	assert.Equal(t, "X-User-ID", cfg.HTTP.IdentityHeader)
	assert.Equal(t, 14*24*time.Hour, cfg.ArchiveRetention())
	assert.DirExists(t, filepath.Join(dir, "db"))

	w, err := cfg.Booking.Window()
	require.NoError(t, err)
	assert.Equal(t, slots.Default, w)
}

func TestLoad_RejectsBadWindow(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "app.db")+`
booking:
  open: "22:00"
  close: "08:00"
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, slots.ErrInvalidWindow)
}

func TestLoad_RedisNeedsAddress(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "app.db")+`
redis:
  enabled: true
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_StaffAccounts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
database:
  path: `+filepath.Join(dir, "app.db")+`
accounts:
  staff:
    t-100: teacher
    a-1: admin
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t-100": "teacher", "a-1": "admin"}, cfg.Accounts.Staff)

	bad := writeFile(t, dir, "bad.yaml", `
database:
  path: `+filepath.Join(dir, "app.db")+`
accounts:
  staff:
    s-1: student
`)
	_, err = Load(bad)
	assert.ErrorContains(t, err, "s-1")
}

func TestLoadRoomsConfig(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "rooms.yaml", `
rooms:
  - name: " 과학실 "
    capacity: 30
    location: 본관 2층
    facilities: [실험대, 빔프로젝터]
  - name: 음악실
    capacity: 25
`)
	cfg, err := LoadRoomsConfig(good)
	require.NoError(t, err)
	require.Len(t, cfg.Rooms, 2)
	assert.Equal(t, "과학실", cfg.Rooms[0].Name)
	assert.Equal(t, []string{"실험대", "빔프로젝터"}, cfg.Rooms[0].Facilities)

	tests := map[string]string{
		"empty":     "rooms: []",
		"duplicate": "rooms:\n  - {name: a, capacity: 1}\n  - {name: a, capacity: 2}",
		"capacity":  "rooms:\n  - {name: a, capacity: 0}",
		"name":      "rooms:\n  - {name: '', capacity: 3}",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRoomsConfig(writeFile(t, t.TempDir(), "rooms.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestWatchRooms_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rooms.yaml", "rooms:\n  - {name: a, capacity: 1}\n")

	var mu sync.Mutex
	var seen []int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchRooms(ctx, path, 10*time.Millisecond, func(cfg *RoomsConfig) {
		mu.Lock()
		seen = append(seen, len(cfg.Rooms))
		mu.Unlock()
	})
	require.NoError(t, err)

	writeFile(t, dir, "rooms.yaml", "rooms:\n  - {name: a, capacity: 1}\n  - {name: b, capacity: 2}\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 && seen[1] == 2
	}, 2*time.Second, 10*time.Millisecond)
}
