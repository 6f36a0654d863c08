// Package cache provides the shared key/value store with TTL used for
// generation sessions, debounce keys and buffered segments.
package cache

import (
	"context"
	"fmt"
	"time"

	"trackline-backend/config"
)

// Store is a minimal TTL key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Expire resets the TTL of an existing key without touching its value.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime; ok is false when the key does not exist.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
