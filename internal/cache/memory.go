package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache. It is only shared
// between goroutines of one process.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewMemoryStore creates a MemoryStore that sweeps expired keys every minute.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := m.c.Add(key, value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, found := m.c.Get(key)
	if !found {
		return false, nil
	}
	if err := m.c.Replace(key, v, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	_, expiresAt, found := m.c.GetWithExpiration(key)
	if !found {
		return 0, false, nil
	}
	if expiresAt.IsZero() {
		return 0, true, nil
	}
	return time.Until(expiresAt), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}
