package middleware

import (
	"context"
	"testing"
	"time"

	"slate/internal/core/domain"
	"slate/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func identityFor(id string) domain.Identity {
	return domain.Identity{ID: domain.IdentityID(id)}
}

func TestConnectionLimiter_BoundsAttemptsPerIP(t *testing.T) {
	limiter := NewConnectionLimiter(memory.NewMemoryCounterStore(), 3, time.Minute, zap.NewNop().Sugar())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "198.51.100.7"))
	}
	assert.False(t, limiter.Allow(ctx, "198.51.100.7"))

	// Another address is unaffected.
	assert.True(t, limiter.Allow(ctx, "198.51.100.8"))
}

func TestConnectionLimiter_FailsOpen(t *testing.T) {
	limiter := NewConnectionLimiter(failingCounterStore{}, 1, time.Minute, zap.NewNop().Sugar())

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(context.Background(), "198.51.100.7"))
	}
}
