package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ratelimit"
)

// RateLimiter enforces per-user limits on API routes. Rules can be swapped at
// runtime when the config file changes.
type RateLimiter struct {
	limiter ratelimit.Limiter
	rules   atomic.Pointer[ratelimit.Rules]
	errs    *apperrors.Handler
	log     *slog.Logger
	now     func() time.Time
}

func NewRateLimiter(limiter ratelimit.Limiter, rules *ratelimit.Rules, errs *apperrors.Handler, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}

	m := &RateLimiter{limiter: limiter, errs: errs, log: log, now: time.Now}
	m.rules.Store(rules)
	return m
}

// SetRules replaces the active rules.
func (m *RateLimiter) SetRules(rules *ratelimit.Rules) {
	m.rules.Store(rules)
}

// Limit returns middleware applying the rule configured for route. It must run
// after Identity. Limiter failures let the request through.
func (m *RateLimiter) Limit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rules := m.rules.Load()
			if m.limiter == nil || !rules.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			userID := UserIDFromContext(r.Context())
			if userID == "" || rules.IsWhitelisted(userID) {
				next.ServeHTTP(w, r)
				return
			}

			limit, window, err := rules.RouteLimit(route)
			if err != nil {
				m.log.ErrorContext(r.Context(), "failed to load rate limit rule", slog.String("route", route), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if m.allow(w, r, route+":"+userID, limit, window) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// Global caps the whole API regardless of caller.
func (m *RateLimiter) Global(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rules := m.rules.Load()
		if m.limiter == nil || !rules.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		limit, window, err := rules.GlobalLimit()
		if err != nil || limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if m.allow(w, r, "global", limit, window) {
			next.ServeHTTP(w, r)
		}
	})
}

func (m *RateLimiter) allow(w http.ResponseWriter, r *http.Request, key string, limit int, window time.Duration) bool {
	result, err := m.limiter.Check(r.Context(), key, limit, window)
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded), err == nil && !result.Allowed:
		retryAfter := result.RetryAfter(m.now())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		WriteError(w, r, m.errs, apperrors.NewRateLimitError(retryAfter))
		return false
	case err != nil:
		m.log.WarnContext(r.Context(), "rate limiter error", slog.String("key", key), slog.Any("error", err))
	default:
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	}
	return true
}
