package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_ratelimit_checks_total",
		Help: "Rate limit decisions by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_ratelimit_redis_errors_total",
		Help: "Redis failures that sent a check to the in-memory fallback.",
	})
)

// AdaptiveLimiter delegates to Redis and falls back to an in-memory limiter at
// half the limit while Redis is unreachable. Both paths report a rejection as
// ErrLimitExceeded.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		return decide("redis", result)
	}

	backendErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, falling back to in-memory", "key", key, "error", err)

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}
	return decide("fallback", result)
}

func decide(backend string, result *Result) (*Result, error) {
	if result.Allowed {
		checksTotal.WithLabelValues(backend, "allowed").Inc()
		return result, nil
	}
	checksTotal.WithLabelValues(backend, "rejected").Inc()
	return result, ErrLimitExceeded
}
