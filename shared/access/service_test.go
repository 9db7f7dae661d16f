package access

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/models"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestCurrentActor(t *testing.T) {
	users := new(mockUsers)
	svc := NewService(users, zerolog.Nop())
	ctx := context.Background()

	t.Run("Known", func(t *testing.T) {
		users.On("GetUser", ctx, "t1").Return(&models.User{ID: "t1", Role: models.RoleTeacher}, nil).Once()

		actor, err := svc.CurrentActor(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.Actor{ID: "t1", Role: models.RoleTeacher}, actor)
	})

	t.Run("Unknown", func(t *testing.T) {
		users.On("GetUser", ctx, "ghost").Return(nil, fmt.Errorf("get: %w", database.ErrNotFound)).Once()

		_, err := svc.CurrentActor(ctx, "ghost")
		assert.True(t, IsAccessDenied(err))
	})

	t.Run("Blank", func(t *testing.T) {
		_, err := svc.CurrentActor(ctx, "")
		assert.True(t, IsAccessDenied(err))
	})

	t.Run("StoreFailure", func(t *testing.T) {
		users.On("GetUser", ctx, "s1").Return(nil, errors.New("disk")).Once()

		_, err := svc.CurrentActor(ctx, "s1")
		require.Error(t, err)
		assert.False(t, IsAccessDenied(err))
	})

	users.AssertExpectations(t)
}

func TestRoleChecks(t *testing.T) {
	student := models.Actor{ID: "s1", Role: models.RoleStudent}
	teacher := models.Actor{ID: "t1", Role: models.RoleTeacher}
	admin := models.Actor{ID: "a1", Role: models.RoleAdmin}

	assert.True(t, IsAccessDenied(RequireStaff(student)))
	assert.NoError(t, RequireStaff(teacher))
	assert.NoError(t, RequireStaff(admin))

	assert.NoError(t, RequireOwnerOrStaff(student, "s1"))
	assert.NoError(t, RequireOwnerOrStaff(teacher, "s1"))
	err := RequireOwnerOrStaff(student, "s2")
	assert.True(t, IsAccessDenied(err))
	assert.Equal(t, MessageNotOwner, err.Error())
}
