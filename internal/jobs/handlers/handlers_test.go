package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/jobs"
	"github.com/Proton-105/himera-wallet/internal/vip"
)

type fakeExpirer struct {
	batch  int
	report vip.ExpiryReport
	err    error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, batchSize int) (vip.ExpiryReport, error) {
	f.batch = batchSize
	return f.report, f.err
}

type fakeSweeper struct {
	n   int
	err error
}

func (f *fakeSweeper) SweepInactiveAgents(context.Context) (int, error) {
	return f.n, f.err
}

func TestVIPExpiryHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("uses payload batch size", func(t *testing.T) {
		exp := &fakeExpirer{report: vip.ExpiryReport{Renewed: 1, Expired: 2}}
		task, err := jobs.NewVIPExpiryTask(42)
		require.NoError(t, err)

		require.NoError(t, NewVIPExpiryHandler(exp, nil).ProcessTask(ctx, task))
		assert.Equal(t, 42, exp.batch)
	})

	t.Run("empty payload falls back to default batch", func(t *testing.T) {
		exp := &fakeExpirer{}
		require.NoError(t, NewVIPExpiryHandler(exp, nil).ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeVIPExpiry, nil)))
		assert.Equal(t, jobs.DefaultVIPExpiryBatch, exp.batch)
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		err := NewVIPExpiryHandler(&fakeExpirer{}, nil).ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeVIPExpiry, []byte("[")))
		require.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("store failure is returned for retry", func(t *testing.T) {
		boom := errors.New("db down")
		err := NewVIPExpiryHandler(&fakeExpirer{err: boom}, nil).ProcessTask(ctx, asynq.NewTask(jobs.TaskTypeVIPExpiry, nil))
		require.ErrorIs(t, err, boom)
	})
}

func TestAgencyInactivityHandler(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, NewAgencyInactivityHandler(&fakeSweeper{n: 3}, nil).ProcessTask(ctx, jobs.NewAgencyInactivityTask()))

	boom := errors.New("db down")
	err := NewAgencyInactivityHandler(&fakeSweeper{err: boom}, nil).ProcessTask(ctx, jobs.NewAgencyInactivityTask())
	require.ErrorIs(t, err, boom)
}
