// Package lock serialises wallet mutations per user across service instances.
package lock

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

const (
	keyPrefix    = "wallet:lock:"
	defaultTTL   = 5 * time.Second
	defaultWait  = 2 * time.Second
	pollInterval = 25 * time.Millisecond
)

// Locker acquires exclusive locks for a set of users. The returned release func is safe to call once.
type Locker interface {
	Lock(ctx context.Context, userIDs ...string) (release func(), err error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX keys, one per user.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    *slog.Logger
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if wait <= 0 {
		wait = defaultWait
	}
	if log == nil {
		log = slog.Default()
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		log:    log,
	}
}

// Lock takes the user locks in ascending id order. It waits up to the configured
// wait time per key and fails with ErrUserLocked when a key stays held.
func (l *RedisLocker) Lock(ctx context.Context, userIDs ...string) (func(), error) {
	ids := slices.Clone(userIDs)
	sort.Strings(ids)
	ids = slices.Compact(ids)

	token := uuid.NewString()
	acquired := make([]string, 0, len(ids))

	for _, id := range ids {
		key := keyPrefix + id
		if err := l.acquire(ctx, key, token); err != nil {
			l.release(acquired, token)
			return nil, err
		}
		acquired = append(acquired, key)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.release(acquired, token)
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire wallet lock", slog.String("key", key), slog.Any("error", err))
			return apperrors.NewExternalAPIError("redis", err)
		}
		if ok {
			return nil
		}

		if time.Now().After(deadline) {
			metrics.RecordLockContention()
			return apperrors.Wrap(apperrors.ErrUserLocked, "%s", key[len(keyPrefix):])
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(keys []string, token string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil {
			l.log.Warn("failed to release wallet lock", slog.String("key", keys[i]), slog.Any("error", err))
		}
	}
}

// NopLocker is used when Redis is not configured; the ledger store still serialises writes.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}
