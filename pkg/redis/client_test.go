package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/pkg/config"
)

func TestClientRecordsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, FromConfig(config.RedisConfig{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	setBefore := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set"))
	getErrBefore := testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get"))
	pipeBefore := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("pipeline"))

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())
	_, err = client.Get(ctx, "missing").Result()
	require.ErrorIs(t, err, goredis.Nil)

	pipe := client.TxPipeline()
	pipe.Incr(ctx, "n")
	pipe.Expire(ctx, "n", time.Minute)
	_, err = pipe.Exec(ctx)
	require.NoError(t, err)

	assert.Equal(t, setBefore+1, testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set")))
	assert.Equal(t, getErrBefore, testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get")), "a miss is not an error")
	assert.Equal(t, pipeBefore+1, testutil.ToFloat64(redisRequestsTotal.WithLabelValues("pipeline")))
	assert.NoError(t, client.HealthCheck(ctx))
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr, MaxRetries: -1})
	assert.Error(t, err)
}
