package cache

import (
	"context"
	"errors"
	"time"
)

// CacheRepo — горячий кеш закодированных схематик.
//
// Использование:
//
//	c := NewRedisCache(cfg, store, invalidator)
//	data, err := c.Get(ctx, SchematicKey(id))
//	err = c.Invalidate(ctx, SchematicKey(id))
type CacheRepo interface {
	// Get получает значение по ключу. При промахе читает ColdStorage (Read-Through).
	// Возвращает ErrCacheMiss если значения нет нигде.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с указанным TTL; 0 — TTL по умолчанию.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ только из локального кеша.
	Delete(ctx context.Context, key string) error

	// Invalidate удаляет ключ и рассылает уведомление другим узлам.
	Invalidate(ctx context.Context, key string) error

	Close() error

	// GetMetrics возвращает снимок метрик кеша.
	GetMetrics() CacheMetrics
}

// ColdStorage — постоянное хранилище под кешем.
type ColdStorage interface {
	// Load возвращает ErrNotStored, если записи нет.
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte) error
}

// CacheInvalidator управляет инвалидацией кеша через Pub/Sub.
type CacheInvalidator interface {
	PublishInvalidation(ctx context.Context, key string) error
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error
	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации кеша.
type InvalidationHandler func(key string) error

// CacheMetrics содержит метрики кеша.
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	ColdLoads     int64   `json:"cold_loads"`
	HitRatio      float64 `json:"hit_ratio"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`

	LastUpdate time.Time `json:"last_update"`
}

// CacheConfig содержит настройки Redis.
type CacheConfig struct {
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
	PoolSize      int           `yaml:"pool_size"`
}

func (c *CacheConfig) withDefaults() {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 10 * time.Minute
	}
	if c.MaxTTL == 0 {
		c.MaxTTL = time.Hour
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

func (c *CacheConfig) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.DefaultTTL
	}
	if ttl > c.MaxTTL {
		return c.MaxTTL
	}
	return ttl
}

// Ошибки кеша
var (
	ErrCacheMiss = errors.New("cache miss")
	ErrNotStored = errors.New("not in cold storage")
)

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// SchematicKey — ключ закодированной схематики
func SchematicKey(id string) string {
	return "schematic:" + id
}
