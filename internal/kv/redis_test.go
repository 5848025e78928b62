package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, "storefront", ttl)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func TestRedisStore_Get_Success(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, mr.Set("storefront:cart", `{"lines":[]}`))

	got, err := store.Get(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"lines":[]}`, string(got))
}

func TestRedisStore_Get_Miss(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	got, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Nil(t, got)
}

func TestRedisStore_Set_WithoutTTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, store.Set(context.Background(), "cart", []byte("x")))

	stored, err := mr.Get("storefront:cart")
	require.NoError(t, err)
	assert.Equal(t, "x", stored)
	assert.Equal(t, time.Duration(0), mr.TTL("storefront:cart"))
}

func TestRedisStore_Set_WithTTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 24*time.Hour)
	defer cleanup()

	require.NoError(t, store.Set(context.Background(), "notifications", []byte("[]")))
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:notifications"))

	mr.FastForward(25 * time.Hour)
	_, err := store.Get(context.Background(), "notifications")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, mr.Set("storefront:cart", "x"))
	require.NoError(t, store.Delete(context.Background(), "cart"))
	assert.False(t, mr.Exists("storefront:cart"))

	// Deleting non-existent key should not error
	assert.NoError(t, store.Delete(context.Background(), "cart"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()
	mr.Close()

	_, err := store.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisStore_PrefixSeparatorIsNotDoubled(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, NewRedisStore(client, "storefront:cart:", 0).Set(ctx, "local_cart:u1", []byte("a")))
	require.NoError(t, NewRedisStore(client, "storefront:cart", 0).Set(ctx, "local_cart:u2", []byte("b")))

	assert.True(t, mr.Exists("storefront:cart:local_cart:u1"))
	assert.True(t, mr.Exists("storefront:cart:local_cart:u2"))
	assert.False(t, mr.Exists("storefront:cart::local_cart:u1"))
}
