package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"teukbyeolsil/internal/archive"
	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/kst"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/restriction"
	"teukbyeolsil/internal/slots"
	"teukbyeolsil/shared/access"
	"teukbyeolsil/shared/audit"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.New(client, time.Minute)
}

func TestRoomService(t *testing.T) {
	env := newBookingEnv(t, morning)
	mr, c := newCache(t)
	logger := zerolog.New(io.Discard)
	svc := NewRoomService(env.db, c, nil, &logger)
	ctx := context.Background()

	rooms, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.True(t, mr.Exists(cache.KeyRooms))

	_, err = svc.Create(ctx, student, RoomInput{Name: "음악실", Capacity: 20})
	assert.True(t, access.IsAccessDenied(err))

	_, err = svc.Create(ctx, teacher, RoomInput{Name: " ", Capacity: 0})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Len(t, fe, 2)

	_, err = svc.Create(ctx, teacher, RoomInput{Name: "과학실", Capacity: 10})
	assert.True(t, IsValidation(err))

	music, err := svc.Create(ctx, teacher, RoomInput{Name: " 음악실 ", Capacity: 20, Facilities: []string{"피아노", " "}})
	require.NoError(t, err)
	assert.Equal(t, "음악실", music.Name)
	assert.Equal(t, []string{"피아노"}, music.Facilities)
	assert.False(t, mr.Exists(cache.KeyRooms), "write invalidates the room list")

	rooms, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	updated, err := svc.Update(ctx, admin, music.ID, RoomInput{Name: "음악실", Capacity: 25, Notes: "악기 반납"})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Capacity)

	_, err = env.svc.Submit(ctx, student, request(env.room.ID, "2024-05-01", "10:00", "11:00"))
	require.NoError(t, err)
	err = svc.Delete(ctx, admin, env.room.ID)
	assert.ErrorIs(t, err, database.ErrRoomInUse)

	require.NoError(t, svc.Delete(ctx, admin, music.ID))
	_, err = svc.Get(ctx, music.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRestrictionService(t *testing.T) {
	env := newBookingEnv(t, morning)
	logger := zerolog.New(io.Discard)
	svc := NewRestrictionService(env.db, nil, nil, &logger)
	ctx := context.Background()

	_, err := svc.Create(ctx, student, RestrictionRequest{RoomID: env.room.ID, Period: restriction.Weekend(nil)})
	assert.True(t, access.IsAccessDenied(err))

	_, err = svc.Create(ctx, teacher, RestrictionRequest{RoomID: env.room.ID, Period: restriction.Period{Kind: "holiday"}})
	assert.ErrorIs(t, err, restriction.ErrUnknownKind)
	assert.True(t, IsValidation(err))

	bad := restriction.Weekday(&restriction.TimeWindow{From: slots.NewClock(20, 0), To: slots.NewClock(18, 0)})
	_, err = svc.Create(ctx, teacher, RestrictionRequest{RoomID: env.room.ID, Period: bad})
	assert.ErrorIs(t, err, restriction.ErrWindowOrder)

	period := restriction.DateRange(kst.Date(2024, 5, 1), kst.Date(2024, 5, 3), nil)
	rr, err := svc.Create(ctx, teacher, RestrictionRequest{RoomID: env.room.ID, Period: period, Reason: " 시험 "})
	require.NoError(t, err)
	assert.Equal(t, "2024년 05월 01일 - 2024년 05월 03일 전체", rr.RestrictedHours)
	assert.Equal(t, "시험", rr.Reason)

	room, err := env.db.GetRoom(ctx, env.room.ID)
	require.NoError(t, err)
	assert.False(t, room.IsAvailable)

	_, err = env.svc.Submit(ctx, student, request(env.room.ID, "2024-05-02", "10:00", "11:00"))
	assert.Error(t, err)

	_, err = svc.SetActive(ctx, teacher, rr.ID, false)
	require.NoError(t, err)
	active, err := svc.ListActive(ctx, teacher)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = env.svc.Submit(ctx, student, request(env.room.ID, "2024-05-02", "10:00", "11:00"))
	assert.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, rr.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, rr.ID), database.ErrNotFound)
}

func TestNoticeService(t *testing.T) {
	env := newBookingEnv(t, morning)
	mr, c := newCache(t)
	svc := NewNoticeService(env.db, c, nil)
	ctx := context.Background()

	n, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, n.Notes)
	assert.True(t, mr.Exists(cache.KeyNotice))

	_, err = svc.Update(ctx, student, models.SystemNotice{Notes: "x"})
	assert.True(t, access.IsAccessDenied(err))

	_, err = svc.Update(ctx, admin, models.SystemNotice{RestrictedHours: " 18시 이후 사용 불가 ", Notes: "정리 후 퇴실"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.KeyNotice))

	n, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "18시 이후 사용 불가", n.RestrictedHours)
	assert.Equal(t, "정리 후 퇴실", n.Notes)
}

func TestAccountService(t *testing.T) {
	env := newBookingEnv(t, morning)
	logger := zerolog.New(io.Discard)
	svc := NewAccountService(env.db, nil, nil, &logger)
	ctx := context.Background()

	_, err := env.svc.Submit(ctx, student, request(env.room.ID, "2024-05-01", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, student, request(env.room.ID, "2024-05-01", "12:00", "13:00"))
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = svc.Delete(ctx, student)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAccountService_Register(t *testing.T) {
	env := newBookingEnv(t, morning)
	logger := zerolog.New(io.Discard)
	svc := NewAccountService(env.db, map[string]string{"t9": "teacher", "x": "student"}, nil, &logger)
	ctx := context.Background()

	u, err := svc.Register(ctx, "s9", ProfileInput{Email: " s9@school.kr ", Name: " 최학생 ", StudentID: "20301"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.Equal(t, "최학생", u.Name)

	stored, err := env.db.GetUser(ctx, "s9")
	require.NoError(t, err)
	assert.Equal(t, "s9@school.kr", stored.Email)
	assert.Equal(t, "20301", stored.StudentID)

	u, err = svc.Register(ctx, "s9", ProfileInput{Email: "s9@school.kr", Name: "최민호", StudentID: "20301"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.True(t, u.CreatedAt.Equal(stored.CreatedAt))

	u, err = svc.Register(ctx, "t9", ProfileInput{Email: "t9@school.kr", Name: "정선생"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, u.Role)

	// An account promoted earlier keeps its role.
	u, err = svc.Register(ctx, teacher.ID, ProfileInput{Email: "t1@school.kr", Name: "박선생"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, u.Role)

	// A non-staff role in the table is ignored.
	_, err = svc.Register(ctx, "x", ProfileInput{Email: "x@school.kr", Name: "엑스"})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "student_id", fe[0].Field)

	tests := []struct {
		name      string
		in        ProfileInput
		wantField string
	}{
		{"missing name", ProfileInput{Email: "n@school.kr", StudentID: "1"}, "name"},
		{"bad email", ProfileInput{Email: "not-an-email", Name: "이름", StudentID: "1"}, "email"},
		{"display name email", ProfileInput{Email: "Kim <k@school.kr>", Name: "이름", StudentID: "1"}, "email"},
		{"missing student id", ProfileInput{Email: "m@school.kr", Name: "이름"}, "student_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, "new", tt.in)
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			require.Len(t, fe, 1)
			assert.Equal(t, tt.wantField, fe[0].Field)
		})
	}

	_, err = svc.Register(ctx, "s10", ProfileInput{Email: student.ID + "@school.kr", Name: "중복", StudentID: "3"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.ErrorIs(t, err, database.ErrDuplicate)

	_, err = svc.Register(ctx, "  ", ProfileInput{Email: "a@school.kr", Name: "a", StudentID: "1"})
	assert.True(t, access.IsAccessDenied(err))
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Sweep(ctx context.Context) (archive.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(archive.Result), args.Error(1)
}

func TestArchiveService(t *testing.T) {
	env := newBookingEnv(t, morning)
	sweeper := new(mockSweeper)
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	var archived int
	bus.Subscribe(func(e events.Event) error {
		archived += e.Count
		return nil
	}, events.ArchiveCompleted)
	exporter := audit.NewExporter(env.db, env.db, nil, logger)
	svc := NewArchiveService(sweeper, env.db, exporter, bus, &logger)
	ctx := context.Background()

	_, err := svc.Sweep(ctx, student)
	assert.True(t, access.IsAccessDenied(err))
	sweeper.AssertNotCalled(t, "Sweep", mock.Anything)

	sweeper.On("Sweep", ctx).Return(archive.Result{Archived: 3, Deleted: 3}, nil).Once()
	res, err := svc.Sweep(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Archived)

	partial := archive.Result{Archived: 2, Warning: &archive.PartialFailure{Archived: 2, Cause: errors.New("locked")}}
	sweeper.On("Sweep", ctx).Return(partial, nil).Once()
	res, err = svc.Sweep(ctx, admin)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, 0, res.Deleted)

	sweeper.On("Sweep", ctx).Return(archive.Result{}, errors.New("copy failed")).Once()
	_, err = svc.Sweep(ctx, admin)
	assert.Error(t, err)

	assert.Equal(t, 5, archived)
	sweeper.AssertExpectations(t)

	list, err := svc.List(ctx, teacher, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, list)

	var buf bytes.Buffer
	n, err := svc.Export(ctx, teacher, time.Time{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{audit.ArchiveSheet}, f.GetSheetList())

	buf.Reset()
	assert.True(t, access.IsAccessDenied(svc.ExportTables(ctx, student, &buf)))
	require.NoError(t, svc.ExportTables(ctx, admin, &buf))
	tf, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer tf.Close()
	assert.Equal(t, database.AuditTableNames, tf.GetSheetList())
	rows, err := tf.GetRows("rooms")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
