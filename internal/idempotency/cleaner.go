package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes records that will never expire on their own.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

type Cleaner struct {
	store    Purger
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(store Purger, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &Cleaner{
		store:    store,
		log:      log,
		interval: interval,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.store.Purge(ctx)
			if err != nil {
				c.log.Error("idempotency cleaner failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				c.log.Debug("idempotency records purged", slog.Int("removed", removed))
			}
		}
	}
}
