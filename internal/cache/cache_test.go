package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackline-backend/config"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStoreFromClient(rdb), mr
}

func backends(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
			got, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, s.Delete(ctx, "k", "absent"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_SetNXAndExpire(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			set, err := s.SetNX(ctx, "nx", []byte("1"), time.Minute)
			require.NoError(t, err)
			assert.True(t, set)

			set, err = s.SetNX(ctx, "nx", []byte("2"), time.Minute)
			require.NoError(t, err)
			assert.False(t, set)

			got, _, err := s.Get(ctx, "nx")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), got)

			ok, err := s.Expire(ctx, "nx", time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)

			ttl, exists, err := s.TTL(ctx, "nx")
			require.NoError(t, err)
			assert.True(t, exists)
			assert.Greater(t, ttl, 59*time.Minute)

			ok, err = s.Expire(ctx, "missing", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)

			_, exists, err = s.TTL(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestRedisStore_KeyExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Set(ctx, "short", []byte("x"), 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = New(ctx, config.CacheConfig{Backend: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	_, err = New(ctx, config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)

	_, err = New(ctx, config.CacheConfig{Backend: "redis"})
	assert.Error(t, err)
}
