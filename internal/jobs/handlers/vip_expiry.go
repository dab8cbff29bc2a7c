package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-wallet/internal/jobs"
	"github.com/Proton-105/himera-wallet/internal/vip"
)

// VIPExpirer renews or expires subscriptions whose window has closed.
type VIPExpirer interface {
	ExpireDue(ctx context.Context, batchSize int) (vip.ExpiryReport, error)
}

type VIPExpiryHandler struct {
	vip VIPExpirer
	log *slog.Logger
}

func NewVIPExpiryHandler(v VIPExpirer, log *slog.Logger) *VIPExpiryHandler {
	return &VIPExpiryHandler{vip: v, log: log}
}

func (h *VIPExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload := jobs.VIPExpiryPayload{BatchSize: jobs.DefaultVIPExpiryBatch}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			if h.log != nil {
				h.log.ErrorContext(ctx, "vip expiry: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
			}
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	report, err := h.vip.ExpireDue(ctx, payload.BatchSize)
	if h.log != nil {
		h.log.DebugContext(ctx, "vip expiry task done",
			slog.Int("renewed", report.Renewed),
			slog.Int("expired", report.Expired),
			slog.Int("failed", report.Failed))
	}
	return err
}
