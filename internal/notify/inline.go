package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/himera-wallet/pkg/logger"
)

// Inline delivers events in-process on a background goroutine. It replaces
// the queue when no Redis is configured.
type Inline struct {
	deliverer *Deliverer
	log       *slog.Logger
	wg        sync.WaitGroup
}

var _ Notifier = (*Inline)(nil)

func NewInline(deliverer *Deliverer, log *slog.Logger) *Inline {
	if log == nil {
		log = slog.Default()
	}
	return &Inline{deliverer: deliverer, log: log}
}

func (n *Inline) Notify(ctx context.Context, event Event) {
	if event.CorrelationID == "" {
		event.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if _, err := n.deliverer.Deliver(ctx, event); err != nil {
			n.log.WarnContext(ctx, "inline notification delivery failed",
				slog.String("user_id", event.UserID),
				slog.String("key", event.Key),
				slog.Any("error", err))
		}
	}()
}

// Close waits for in-flight deliveries or until ctx is done.
func (n *Inline) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
