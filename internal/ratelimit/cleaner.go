package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically drops idle MemoryLimiter buckets. Redis keys expire on
// their own, so only the in-process limiter needs sweeping.
type Janitor struct {
	limiter  *MemoryLimiter
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewJanitor(limiter *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}

	return &Janitor{limiter: limiter, log: log, interval: interval, maxAge: maxAge}
}

// Run sweeps until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j == nil || j.limiter == nil {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := j.limiter.Cleanup(j.maxAge); removed > 0 {
				j.log.DebugContext(ctx, "rate limit buckets cleaned", slog.Int("buckets_removed", removed))
			}
		}
	}
}
