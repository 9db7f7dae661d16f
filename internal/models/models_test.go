package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("guest").Valid())

	assert.False(t, RoleStudent.IsStaff())
	assert.True(t, RoleTeacher.IsStaff())
	assert.True(t, RoleAdmin.IsStaff())
}

func TestStatusBlocking(t *testing.T) {
	assert.True(t, StatusPending.Blocking())
	assert.True(t, StatusConfirmed.Blocking())
	assert.False(t, StatusRejected.Blocking())
}

func TestReservation_LastTouched(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := &Reservation{CreatedAt: created}
	assert.Equal(t, created, r.LastTouched())

	r.UpdatedAt = &time.Time{}
	assert.Equal(t, created, r.LastTouched())

	updated := created.Add(48 * time.Hour)
	r.UpdatedAt = &updated
	assert.Equal(t, updated, r.LastTouched())
}
