package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Proton-105/himera-wallet/internal/health"
)

var ErrDraining = errors.New("service is shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers the orchestrator. Readiness fails once draining starts or
// when any dependency check fails.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
}

var _ HealthChecker = (*Probes)(nil)

func NewProbes(checker *health.Checker) *Probes {
	return &Probes{checker: checker}
}

func (p *Probes) Liveness(context.Context) error {
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrDraining
	}
	if p.checker == nil {
		return nil
	}
	if report := p.checker.Check(ctx); !report.Healthy {
		return errors.New("dependency check failed")
	}
	return nil
}

// Drain makes readiness fail so the load balancer stops sending traffic.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

// Report exposes the detailed component status for /health.
func (p *Probes) Report(ctx context.Context) health.Report {
	if p.checker == nil {
		return health.Report{Healthy: true, Components: map[string]string{}}
	}
	return p.checker.Check(ctx)
}
