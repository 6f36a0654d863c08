package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trackline-backend/config"
)

// RedisStore is a Store shared by every process pointing at the same redis.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore connects to redis and pings it before returning.
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("missing redis_addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.Expire(ctx, key, ttl).Result()
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	switch {
	case d == -2:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	}
	return d, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
