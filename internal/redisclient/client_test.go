package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	c, err := NewClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	c.prefix = "pharmacy-test:" + t.Name() + ":"
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	token, err := c.AcquireLock(ctx, "reclaim", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	second, err := c.AcquireLock(ctx, "reclaim", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	require.NoError(t, c.ReleaseLock(ctx, "reclaim", "someone-else"))
	second, err = c.AcquireLock(ctx, "reclaim", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second, "foreign token must not release the lock")

	require.NoError(t, c.ReleaseLock(ctx, "reclaim", token))
	third, err := c.AcquireLock(ctx, "reclaim", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, third)
	require.NoError(t, c.ReleaseLock(ctx, "reclaim", third))
}
