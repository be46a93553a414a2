package memory

import (
	"context"
	"sync"
	"time"

	"slate/internal/core/ports"
)

type windowCounter struct {
	count       int64
	windowStart time.Time
}

// MemoryCounterStore backs fixed-window rate limiting for a single
// instance. The counter resets when the window rolls over.
type MemoryCounterStore struct {
	counters map[string]*windowCounter
	mu       sync.Mutex
}

func NewMemoryCounterStore() ports.CounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*windowCounter),
	}
}

func (s *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, exists := s.counters[key]
	if !exists || now.Sub(c.windowStart) >= window {
		c = &windowCounter{windowStart: now}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}
