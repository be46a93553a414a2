package middleware

import (
	"context"
	"fmt"
	"time"

	"slate/internal/core/ports"

	"go.uber.org/zap"
)

// ConnectionLimiter bounds connection attempts per source address over a
// fixed window. It runs before authentication so credential stuffing burns
// out here. Like the event limiter it fails open on store trouble.
type ConnectionLimiter struct {
	counters ports.CounterStore
	limit    int
	window   time.Duration
	logger   *zap.SugaredLogger
}

func NewConnectionLimiter(counters ports.CounterStore, limit int, window time.Duration, logger *zap.SugaredLogger) *ConnectionLimiter {
	return &ConnectionLimiter{
		counters: counters,
		limit:    limit,
		window:   window,
		logger:   logger,
	}
}

// Allow reports whether another connection attempt from ip may proceed.
func (l *ConnectionLimiter) Allow(ctx context.Context, ip string) bool {
	if l.limit <= 0 || l.counters == nil {
		return true
	}

	count, err := l.counters.Increment(ctx, fmt.Sprintf("connect:%s", ip), l.window)
	if err != nil {
		l.logger.Warnw("connection limit store unavailable, failing open",
			"ip", ip,
			"error", err,
		)
		return true
	}
	return count <= int64(l.limit)
}

// Window exposes the limiting window for error reporting.
func (l *ConnectionLimiter) Window() time.Duration {
	return l.window
}
