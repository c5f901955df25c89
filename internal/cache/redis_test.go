package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinnell/analytics_api/internal/config"
)

func newTestRedis(t *testing.T) *RedisClient {
	t.Helper()
	client, err := NewRedisClient(&config.RedisConfig{Addr: "localhost:6379", DB: 15})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache_RoundTrip(t *testing.T) {
	client := newTestRedis(t)
	c := NewRedisCache(client, "test:"+t.Name()+":", time.Minute)
	ctx := context.Background()
	t.Cleanup(func() { _ = c.Delete(ctx, "k") })

	var got map[string]string
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", map[string]string{"a": "b"}))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"a": "b"}, got)
}
