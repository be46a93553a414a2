package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"slate/internal/core/ports"
	"slate/pkg/circuitbreaker"
	"slate/pkg/config"
	apperrors "slate/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventLimiter throttles realtime events per (identity, event name). Two
// strategies are supported: a fixed-window counter backed by the shared
// counter store, and an in-process token bucket. The shared-store flavor
// fails OPEN: if the store is unreachable the event goes through and the
// outage is logged, because collaboration availability outranks strict
// enforcement.
type EventLimiter struct {
	strategy string
	window   time.Duration
	counters ports.CounterStore
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewEventLimiter(cfg config.EventRateLimitConfig, counters ports.CounterStore, logger *zap.SugaredLogger) *EventLimiter {
	return &EventLimiter{
		strategy: cfg.Strategy,
		window:   cfg.Window,
		counters: counters,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:   logger,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// Limit wraps a handler with a per-event-class bound. Signaling, chat and
// room events each pass their own limit so abuse surfaces stay independent.
func (l *EventLimiter) Limit(limit int) func(event string, next ports.EventHandler) ports.EventHandler {
	return func(event string, next ports.EventHandler) ports.EventHandler {
		return func(ctx context.Context, conn *ports.ConnContext, payload json.RawMessage) error {
			if limit <= 0 {
				return next(ctx, conn, payload)
			}
			if !l.allow(ctx, string(conn.Identity.ID), event, limit) {
				return apperrors.NewRateLimitError(l.window).
					WithContext("event", event)
			}
			return next(ctx, conn, payload)
		}
	}
}

func (l *EventLimiter) allow(ctx context.Context, identity, event string, limit int) bool {
	if l.strategy == "token_bucket" || l.counters == nil {
		return l.allowBucket(identity, event, limit)
	}
	return l.allowWindow(ctx, identity, event, limit)
}

func (l *EventLimiter) allowWindow(ctx context.Context, identity, event string, limit int) bool {
	key := fmt.Sprintf("%s:%s", identity, event)

	var count int64
	err := l.breaker.Execute(ctx, func() error {
		var ierr error
		count, ierr = l.counters.Increment(ctx, key, l.window)
		return ierr
	})
	if err != nil {
		// Fail open: the counter store (or the breaker guarding it) is
		// unavailable, so the event passes and the outage is logged.
		l.logger.Warnw("rate limit store unavailable, failing open",
			"identity", identity,
			"event", event,
			"error", err,
		)
		return true
	}
	return count <= int64(limit)
}

func (l *EventLimiter) allowBucket(identity, event string, limit int) bool {
	key := fmt.Sprintf("%s:%s", identity, event)

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		refill := rate.Every(l.window / time.Duration(limit))
		bucket = rate.NewLimiter(refill, limit)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
