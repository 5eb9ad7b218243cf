package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "catalog"), mr
}

func TestRedisCache_GetSetDel(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_GenerateKey(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Equal(t, "catalog:customer:customer-1", c.GenerateKey("customer", "customer-1"))
}

func TestRedisCache_JSONHelpers(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type record struct {
		ID    string `json:"id"`
		Stock int    `json:"stock"`
	}
	require.NoError(t, SetJSON(ctx, c, "r", record{ID: "p1", Stock: 4}, time.Minute))

	got, ok, err := GetJSON[record](ctx, c, "r")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record{ID: "p1", Stock: 4}, got)

	require.NoError(t, c.Set(ctx, "bad", "{", time.Minute))
	_, _, err = GetJSON[record](ctx, c, "bad")
	assert.Error(t, err)
}

func TestRedisCache_StoreDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}
