package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/pkg/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestRedisLimiterSlidingWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRedisLimiter(client, testLogger())
	limiter.now = clk.now
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "user:u1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 1-i, result.Remaining)
		clk.t = clk.t.Add(10 * time.Second)
	}

	result, err := limiter.Check(ctx, "user:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 40, result.RetryAfter(clk.t))

	n, err := client.ZCard(ctx, redisKeyPrefix+"user:u1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "rejected request is not counted")

	clk.t = clk.t.Add(41 * time.Second)
	result, err = limiter.Check(ctx, "user:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	other, err := limiter.Check(ctx, "user:u2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter()
	limiter.now = clk.now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Check(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
	}

	result, err := limiter.Check(ctx, "k", 3, time.Minute)
	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	clk.t = clk.t.Add(time.Minute + time.Second)
	_, err = limiter.Check(ctx, "k", 3, time.Minute)
	require.NoError(t, err)

	clk.t = clk.t.Add(time.Hour)
	assert.Equal(t, 1, limiter.Cleanup(10*time.Minute))
	assert.Empty(t, limiter.buckets)
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestAdaptiveLimiterFallsBackAtHalfLimit(t *testing.T) {
	limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "k", 4, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "k", 4, time.Minute)
	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestAdaptiveLimiterUsesRedis(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(), testLogger())
	ctx := context.Background()

	_, err := limiter.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "k", 1, time.Minute)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 120, Window: "1m"},
		Routes:    map[string]config.RateLimitRule{"lucky_wallet_play": {Limit: 30, Window: "30s"}},
		Whitelist: []string{"ops"},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted("ops"))
	assert.False(t, rules.IsWhitelisted("u1"))

	limit, window, err := rules.RouteLimit("lucky_wallet_play")
	require.NoError(t, err)
	assert.Equal(t, 30, limit)
	assert.Equal(t, 30*time.Second, window)

	limit, window, err = rules.RouteLimit("gifts_send")
	require.NoError(t, err)
	assert.Equal(t, 120, limit)
	assert.Equal(t, time.Minute, window)

	_, _, err = rules.GlobalLimit()
	require.Error(t, err)
}
