package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// AgentSweeper deactivates agents that stopped earning.
type AgentSweeper interface {
	SweepInactiveAgents(ctx context.Context) (int, error)
}

type AgencyInactivityHandler struct {
	sweeper AgentSweeper
	log     *slog.Logger
}

func NewAgencyInactivityHandler(s AgentSweeper, log *slog.Logger) *AgencyInactivityHandler {
	return &AgencyInactivityHandler{sweeper: s, log: log}
}

func (h *AgencyInactivityHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	n, err := h.sweeper.SweepInactiveAgents(ctx)
	if err != nil {
		return err
	}
	if h.log != nil && n > 0 {
		h.log.InfoContext(ctx, "agency sweep deactivated agents", slog.String("task_type", t.Type()), slog.Int("count", n))
	}
	return nil
}
