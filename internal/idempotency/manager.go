// Package idempotency replays the stored response of a mutating request when
// a client retries it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Response is what gets replayed for a repeated key.
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Operation performs the request once. Returning an error or a 5xx response
// leaves the key free so the client can retry.
type Operation func(ctx context.Context) (*Response, error)

type Result struct {
	Response  *Response
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store    Store
	lockTTL  time.Duration
	pollWait time.Duration
	log      *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:    store,
		lockTTL:  time.Minute,
		pollWait: 100 * time.Millisecond,
		log:      log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	for {
		locked, err := m.store.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return nil, err
		}

		record, err := m.store.Get(ctx, key)
		if err != nil {
			if locked {
				m.release(ctx, key)
			}
			return nil, err
		}

		switch {
		case record != nil && record.Status == StatusCompleted:
			if locked {
				m.release(ctx, key)
			}
			return &Result{Response: record.Response, FromCache: true}, nil
		case locked:
			return m.run(ctx, key, ttl, fn)
		case record != nil:
			return nil, ErrRequestInProgress
		}

		// the holder released without storing anything; try again
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollWait):
		}
	}
}

func (m *manager) release(ctx context.Context, key string) {
	if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
		m.log.WarnContext(ctx, "idempotency: release lock", slog.String("key", key), slog.Any("error", err))
	}
}

func (m *manager) run(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	defer m.release(ctx, key)

	if err := m.store.Set(ctx, key, &Record{Status: StatusProcessing}, m.lockTTL); err != nil {
		return nil, err
	}

	resp, err := fn(ctx)
	if err != nil || resp == nil || resp.Status >= 500 {
		if delErr := m.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			m.log.WarnContext(ctx, "idempotency: clear record", slog.String("key", key), slog.Any("error", delErr))
		}
		if err != nil {
			return nil, err
		}
		return &Result{Response: resp}, nil
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Response: resp}, ttl); err != nil {
		m.log.ErrorContext(ctx, "idempotency: store response", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Response: resp}, nil
}
