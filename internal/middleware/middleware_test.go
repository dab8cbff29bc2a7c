package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/idempotency"
	"github.com/Proton-105/himera-wallet/internal/ratelimit"
	"github.com/Proton-105/himera-wallet/pkg/config"
	"github.com/Proton-105/himera-wallet/pkg/logger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIdentity(t *testing.T) {
	errs := apperrors.NewHandler(quietLogger(), false)
	r := chi.NewRouter()
	r.Use(logger.Middleware, Identity(errs))
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"user_id": UserIDFromContext(r.Context())})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "unauthenticated", body.Reason)
	assert.NotEmpty(t, body.CorrelationID)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(UserIDHeader, "u1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	errs := apperrors.NewHandler(quietLogger(), false)
	rules := ratelimit.NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 100, Window: "1m"},
		Routes:    map[string]config.RateLimitRule{"play": {Limit: 2, Window: "1m"}},
		Whitelist: []string{"ops"},
	})
	limiter := NewRateLimiter(ratelimit.NewMemoryLimiter(), rules, errs, quietLogger())

	r := chi.NewRouter()
	r.Use(Identity(errs))
	r.With(limiter.Limit("play")).Post("/play", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/play", nil)
		req.Header.Set(UserIDHeader, user)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("u1").Code)
	assert.Equal(t, http.StatusNoContent, do("u1").Code)

	rec := do("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "E500", decodeError(t, rec).Code)

	assert.Equal(t, http.StatusNoContent, do("u2").Code, "limits are per user")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, do("ops").Code)
	}

	limiter.SetRules(ratelimit.NewRules(config.RateLimitConfig{Enabled: false}))
	assert.Equal(t, http.StatusNoContent, do("u1").Code)
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	errs := apperrors.NewHandler(quietLogger(), false)
	manager := idempotency.NewManager(idempotency.NewMemoryStore(), quietLogger())

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Use(Identity(errs), Idempotency(manager, errs, quietLogger()))
	r.Post("/deposit", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		WriteJSON(w, http.StatusOK, map[string]int32{"call": n})
	})

	do := func(user, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"amount":50}`))
		req.Header.Set(UserIDHeader, user)
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := do("u1", "abc")
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"call":1}`, first.Body.String())
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	replay := do("u1", "abc")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, `{"call":1}`, replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get(ReplayedHeader))

	assert.JSONEq(t, `{"call":2}`, do("u2", "abc").Body.String(), "keys are scoped per user")
	assert.JSONEq(t, `{"call":3}`, do("u1", "").Body.String())
	assert.Equal(t, int32(3), calls.Load())

	tooLong := do("u1", strings.Repeat("k", 256))
	assert.Equal(t, http.StatusBadRequest, tooLong.Code)
}

func TestLoggingAndMetricsPassThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logging(quietLogger()), Metrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
