package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process Limiter used without Redis and as the
// AdaptiveLimiter fallback.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	reqs := keepRecent(m.buckets[key], windowStart)
	allowed := len(reqs) < limit
	if allowed {
		reqs = append(reqs, now)
	}
	m.buckets[key] = reqs

	resetAt := now.Add(window)
	if len(reqs) > 0 {
		resetAt = reqs[0].Add(window)
	}

	remaining := limit - len(reqs)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup removes buckets whose newest request is older than maxAge and
// returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, reqs := range m.buckets {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(reqs) && !reqs[firstIdx].After(windowStart) {
		firstIdx++
	}
	if firstIdx == 0 {
		return reqs
	}
	return append(reqs[:0], reqs[firstIdx:]...)
}
