package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/lifecycle"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/shared/access"
)

type mockReservations struct {
	mock.Mock
}

func (m *mockReservations) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockReservations) GetReservationsForRoom(ctx context.Context, roomID string, from, to time.Time, statuses []models.Status) ([]models.Reservation, error) {
	args := m.Called(ctx, roomID, from, to, statuses)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockReservations) ListReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockReservations) InsertReservations(ctx context.Context, records []models.Reservation) error {
	return m.Called(ctx, records).Error(0)
}

func (m *mockReservations) UpdateReservationStatus(ctx context.Context, p lifecycle.Patch) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockReservations) DeleteReservation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func pending(id string) *models.Reservation {
	return &models.Reservation{ID: id, UserID: student.ID, RoomID: "r1", Status: models.StatusPending, Purpose: "동아리 활동"}
}

func TestReviewService(t *testing.T) {
	repo := new(mockReservations)
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	var published []events.Type
	bus.Subscribe(func(e events.Event) error {
		published = append(published, e.Type)
		return nil
	}, events.ReservationApproved, events.ReservationRejected)

	now := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	svc := NewReviewService(repo, bus, func() time.Time { return now }, &logger)
	ctx := context.Background()

	t.Run("Approve", func(t *testing.T) {
		repo.On("GetReservation", ctx, "p1").Return(pending("p1"), nil).Once()
		repo.On("UpdateReservationStatus", ctx, mock.MatchedBy(func(p lifecycle.Patch) bool {
			return p.ID == "p1" && p.From == models.StatusPending && p.To == models.StatusConfirmed &&
				p.ApprovedBy == teacher.ID && p.RejectionReason == "" && p.UpdatedAt.Equal(now)
		})).Return(nil).Once()

		r, err := svc.Approve(ctx, teacher, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, r.Status)
		assert.Equal(t, teacher.ID, r.ApprovedBy)
		assert.NoError(t, lifecycle.CheckInvariant(*r))
		repo.AssertExpectations(t)
	})

	t.Run("RejectWithoutReason", func(t *testing.T) {
		own := new(mockReservations)
		own.On("GetReservation", ctx, "p2").Return(pending("p2"), nil).Once()
		ownSvc := NewReviewService(own, bus, func() time.Time { return now }, &logger)

		_, err := ownSvc.Reject(ctx, admin, "p2", "   ")
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.ErrorIs(t, err, lifecycle.ErrReasonRequired)
		own.AssertNotCalled(t, "UpdateReservationStatus", mock.Anything, mock.Anything)
		own.AssertExpectations(t)
	})

	t.Run("Reject", func(t *testing.T) {
		repo.On("GetReservation", ctx, "p3").Return(pending("p3"), nil).Once()
		repo.On("UpdateReservationStatus", ctx, mock.MatchedBy(func(p lifecycle.Patch) bool {
			return p.ID == "p3" && p.To == models.StatusRejected && p.RejectedBy == admin.ID &&
				p.RejectionReason == "시험 기간" && p.ApprovedBy == ""
		})).Return(nil).Once()

		r, err := svc.Reject(ctx, admin, "p3", " 시험 기간 ")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, r.Status)
		assert.NoError(t, lifecycle.CheckInvariant(*r))
	})

	t.Run("RejectConfirmedIsIllegal", func(t *testing.T) {
		confirmed := pending("c1")
		confirmed.Status, confirmed.ApprovedBy = models.StatusConfirmed, teacher.ID
		repo.On("GetReservation", ctx, "c1").Return(confirmed, nil).Once()

		_, err := svc.Reject(ctx, teacher, "c1", "중복")
		assert.True(t, IsValidation(err))
		assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)
	})

	t.Run("LostRace", func(t *testing.T) {
		repo.On("GetReservation", ctx, "p4").Return(pending("p4"), nil).Once()
		repo.On("UpdateReservationStatus", ctx, mock.Anything).
			Return(fmt.Errorf("reservation p4: %w", lifecycle.ErrIllegalTransition)).Once()

		_, err := svc.Approve(ctx, teacher, "p4")
		assert.True(t, IsValidation(err))
	})

	t.Run("StudentDenied", func(t *testing.T) {
		_, err := svc.Approve(ctx, student, "p1")
		assert.True(t, access.IsAccessDenied(err))
	})

	t.Run("Missing", func(t *testing.T) {
		repo.On("GetReservation", ctx, "nope").Return(nil, database.ErrNotFound).Once()
		_, err := svc.Approve(ctx, teacher, "nope")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("ListPending", func(t *testing.T) {
		filter := models.ReservationFilter{Statuses: []models.Status{models.StatusPending}}
		repo.On("ListReservations", ctx, filter).Return([]models.Reservation{*pending("p5")}, nil).Once()

		got, err := svc.ListPending(ctx, teacher)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		_, err = svc.ListPending(ctx, student)
		assert.True(t, access.IsAccessDenied(err))
	})

	assert.Equal(t, []events.Type{events.ReservationApproved, events.ReservationRejected}, published)
}
