package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MemoryCache — CacheRepo в памяти процесса для одиночного узла и тестов.
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[string]memoryEntry
	config      CacheConfig
	coldStorage ColdStorage
	invalidator CacheInvalidator
	stats       stats
	now         func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache создаёт кеш; coldStorage и invalidator могут быть nil.
func NewMemoryCache(config CacheConfig, coldStorage ColdStorage, invalidator CacheInvalidator) *MemoryCache {
	config.withDefaults()
	return &MemoryCache{
		entries:     make(map[string]memoryEntry),
		config:      config,
		coldStorage: coldStorage,
		invalidator: invalidator,
		now:         time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer m.stats.recordLatency(start)

	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if ok {
		m.stats.hit()
		return e.value, nil
	}
	m.stats.miss()

	if m.coldStorage == nil {
		return nil, ErrCacheMiss
	}
	val, err := m.coldStorage.Load(ctx, key)
	if errors.Is(err, ErrNotStored) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cold storage load %s: %w", key, err)
	}
	m.stats.coldLoad()
	_ = m.Set(ctx, key, val, 0)
	return val, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(m.config.clampTTL(ttl))}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Invalidate(ctx context.Context, key string) error {
	_ = m.Delete(ctx, key)
	if m.invalidator == nil {
		return nil
	}
	return m.invalidator.PublishInvalidation(ctx, key)
}

func (m *MemoryCache) Close() error { return nil }

func (m *MemoryCache) GetMetrics() CacheMetrics { return m.stats.snapshot() }
