package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"slate/internal/core/ports"
	"slate/internal/infrastructure/repositories/memory"
	"slate/pkg/config"
	apperrors "slate/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCounterStore struct{}

func (failingCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("store unreachable")
}

func limiterConfig(strategy string) config.EventRateLimitConfig {
	return config.EventRateLimitConfig{
		Strategy: strategy,
		Window:   time.Minute,
	}
}

func countingHandler(calls *int) ports.EventHandler {
	return func(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
		*calls++
		return nil
	}
}

func testConn() *ports.ConnContext {
	return &ports.ConnContext{ID: "conn-1", Identity: identityFor("user-1")}
}

func TestEventLimiter_FixedWindowRejectsOverLimit(t *testing.T) {
	limiter := NewEventLimiter(limiterConfig("fixed_window"), memory.NewMemoryCounterStore(), zap.NewNop().Sugar())

	calls := 0
	handler := limiter.Limit(2)("chat-message", countingHandler(&calls))

	ctx := context.Background()
	require.NoError(t, handler(ctx, testConn(), nil))
	require.NoError(t, handler(ctx, testConn(), nil))

	err := handler(ctx, testConn(), nil)
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeRateLimit, appErr.Code)
	assert.Contains(t, appErr.Context, "window")
}

func TestEventLimiter_SeparateCountsPerEvent(t *testing.T) {
	limiter := NewEventLimiter(limiterConfig("fixed_window"), memory.NewMemoryCounterStore(), zap.NewNop().Sugar())

	calls := 0
	chat := limiter.Limit(1)("chat-message", countingHandler(&calls))
	signal := limiter.Limit(1)("webrtc-offer", countingHandler(&calls))

	ctx := context.Background()
	require.NoError(t, chat(ctx, testConn(), nil))
	// A different event class has its own counter.
	require.NoError(t, signal(ctx, testConn(), nil))
	require.Error(t, chat(ctx, testConn(), nil))
}

func TestEventLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter := NewEventLimiter(limiterConfig("fixed_window"), failingCounterStore{}, zap.NewNop().Sugar())

	calls := 0
	handler := limiter.Limit(1)("chat-message", countingHandler(&calls))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, handler(ctx, testConn(), nil))
	}
	assert.Equal(t, 5, calls)
}

func TestEventLimiter_TokenBucket(t *testing.T) {
	limiter := NewEventLimiter(limiterConfig("token_bucket"), nil, zap.NewNop().Sugar())

	calls := 0
	handler := limiter.Limit(3)("join-room", countingHandler(&calls))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, handler(ctx, testConn(), nil))
	}
	require.Error(t, handler(ctx, testConn(), nil))
	assert.Equal(t, 3, calls)
}

func TestEventLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewEventLimiter(limiterConfig("fixed_window"), memory.NewMemoryCounterStore(), zap.NewNop().Sugar())

	calls := 0
	handler := limiter.Limit(0)("heartbeat", countingHandler(&calls))
	for i := 0; i < 10; i++ {
		require.NoError(t, handler(context.Background(), testConn(), nil))
	}
	assert.Equal(t, 10, calls)
}
