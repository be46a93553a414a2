package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// intervalThrottle enforces a minimum spacing between events per key. It is
// in-process state only: each gateway instance throttles its own
// connections, which is sufficient because a connection lives on exactly one
// instance.
type intervalThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

func newIntervalThrottle(interval time.Duration) *intervalThrottle {
	return &intervalThrottle{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Allow reports whether an event for key may pass now.
func (t *intervalThrottle) Allow(key string) bool {
	if t.interval <= 0 {
		return true
	}

	t.mu.Lock()
	limiter, ok := t.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[key] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow()
}

// Forget drops the limiter state for key, typically on disconnect.
func (t *intervalThrottle) Forget(key string) {
	t.mu.Lock()
	delete(t.limiters, key)
	t.mu.Unlock()
}
