package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginThrottleLocksAfterMaxAttempts(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, throttle.Fail(ctx, "Ada"))
	}
	locked, err := throttle.Locked(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, throttle.Fail(ctx, " ada "))
	locked, err = throttle.Locked(ctx, "ADA")
	require.NoError(t, err)
	assert.True(t, locked)

	assert.Equal(t, time.Minute, mr.TTL("login:fail:ada"))

	mr.FastForward(time.Minute + time.Second)
	locked, err = throttle.Locked(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLoginThrottleReset(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	throttle := NewLoginThrottle(client, 1, time.Minute)

	require.NoError(t, throttle.Fail(ctx, "grace"))
	locked, err := throttle.Locked(ctx, "grace")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, throttle.Reset(ctx, "grace"))
	locked, err = throttle.Locked(ctx, "grace")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLoginThrottleDisabled(t *testing.T) {
	var throttle *LoginThrottle
	locked, err := throttle.Locked(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, throttle.Fail(context.Background(), "x"))
}

func TestNewRedisClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := NewRedisClient(context.Background(), configFor(addr))
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), configFor(addr))
	assert.Error(t, err)
}

func configFor(addr string) config.RedisConfig {
	return config.RedisConfig{Addr: addr}
}
