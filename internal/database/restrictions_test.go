package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/restriction"
	"teukbyeolsil/internal/slots"
)

func newRestriction(roomID string, p restriction.Period) *models.RoomRestriction {
	return &models.RoomRestriction{RoomID: roomID, Period: p, RestrictedHours: p.String(), Reason: "공사", CreatedBy: "a1"}
}

func TestCreateRestriction_TogglesRoomAndDeactivatesPrevious(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, "과학실")

	first := newRestriction(room.ID, restriction.Weekday(&restriction.TimeWindow{From: slots.NewClock(18, 0), To: slots.NewClock(20, 0)}))
	require.NoError(t, db.CreateRestriction(ctx, first))

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	second := newRestriction(room.ID, restriction.DateRange(kst.Date(2024, 5, 1), kst.Date(2024, 5, 3), nil))
	require.NoError(t, db.CreateRestriction(ctx, second))

	active, err := db.GetActiveRestrictionsForRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, restriction.KindDateRange, active[0].Period.Kind)
	assert.Equal(t, kst.Date(2024, 5, 3), active[0].Period.EndDate)
	assert.Equal(t, "2024년 05월 01일 - 2024년 05월 03일 전체", active[0].RestrictedHours)
	assert.Equal(t, "과학실", active[0].RoomName)

	old, err := db.GetRestriction(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	require.NotNil(t, old.Period.Window)
	assert.Equal(t, slots.NewClock(18, 0), old.Period.Window.From)
}

func TestSetRestrictionActive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, "과학실")

	a := newRestriction(room.ID, restriction.Weekend(nil))
	require.NoError(t, db.CreateRestriction(ctx, a))
	b := newRestriction(room.ID, restriction.AllTime(nil))
	require.NoError(t, db.CreateRestriction(ctx, b))

	off, err := db.SetRestrictionActive(ctx, b.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)

	on, err := db.SetRestrictionActive(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	got, err = db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	_, err = db.SetRestrictionActive(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := db.ListRestrictions(ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestDeleteRestriction_RestoresAvailability(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, "과학실")

	rr := newRestriction(room.ID, restriction.AllTime(nil))
	require.NoError(t, db.CreateRestriction(ctx, rr))
	require.NoError(t, db.DeleteRestriction(ctx, rr.ID))

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	assert.ErrorIs(t, db.DeleteRestriction(ctx, rr.ID), ErrNotFound)
}

func TestCreateRestriction_UnknownRoom(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateRestriction(context.Background(), newRestriction("missing", restriction.AllTime(nil)))
	assert.ErrorIs(t, err, ErrNotFound)
}
