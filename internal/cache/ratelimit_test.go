package cache

import (
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
)

func TestRedisLimiter(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := l.Allow(ctx, "u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "u2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "limits are per user")

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "u1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window expired")
}

func TestRedisLimiter_ZeroLimitDisables(t *testing.T) {
	_, client := newRedis(t)
	ok, err := NewRedisLimiter(client).Allow(context.Background(), "u1", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_ErrorWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewRedisLimiter(client).Allow(context.Background(), "u1", 3, time.Minute)
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "u1", 2, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "u1", 2, time.Hour)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "u2", 2, time.Hour)
	assert.True(t, ok)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	l := NewFailoverLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "u1", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "u1", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallback", func(t *testing.T) {
		primary.On("Allow", ctx, "u2", 5, time.Minute).Return(false, errors.New("redis down")).Once()
		fallback.On("Allow", ctx, "u2", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "u2", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, l.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Allow", ctx, "u3", 5, time.Minute).Return(false, nil).Once()

		ok, err := l.Allow(ctx, "u3", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "Allow", ctx, "u3", 5, time.Minute)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		l.mu.Lock()
		l.lastCheck = time.Now().Add(-2 * time.Minute)
		l.mu.Unlock()
		primary.On("Allow", ctx, "u4", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "u4", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, l.isDown.Load())
		primary.AssertExpectations(t)
	})
}
