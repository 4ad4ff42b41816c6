package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует CacheRepo поверх Redis с Read-Through из ColdStorage.
type RedisCache struct {
	client      *redis.Client
	config      *CacheConfig
	coldStorage ColdStorage
	invalidator CacheInvalidator
	stats       stats
	log         *logging.Logger
}

// NewRedisCache подключается к Redis.
// coldStorage и invalidator могут быть nil.
func NewRedisCache(config *CacheConfig, coldStorage ColdStorage, invalidator CacheInvalidator) (*RedisCache, error) {
	config.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.PoolSize,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisCache{
		client:      rdb,
		config:      config,
		coldStorage: coldStorage,
		invalidator: invalidator,
		log:         logging.GetComponentLogger("cache"),
	}

	// Чужие узлы сообщают об изменениях — сбрасываем свою копию
	if invalidator != nil {
		err := invalidator.SubscribeInvalidations(context.Background(), func(key string) error {
			return c.Delete(context.Background(), key)
		})
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("subscribe invalidations: %w", err)
		}
	}

	c.log.Info("Redis cache initialized: %s", config.RedisURL)
	return c, nil
}

// Get получает значение по ключу из Redis, при промахе читает ColdStorage.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer r.stats.recordLatency(start)

	val, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		r.stats.hit()
		return val, nil
	}
	r.stats.miss()

	if !errors.Is(err, redis.Nil) {
		r.log.Error("Redis Get error for key %s: %v", key, err)
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	if r.coldStorage == nil {
		return nil, ErrCacheMiss
	}
	val, err = r.coldStorage.Load(ctx, key)
	if errors.Is(err, ErrNotStored) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cold storage load %s: %w", key, err)
	}
	r.stats.coldLoad()

	if err := r.client.Set(ctx, key, val, r.config.DefaultTTL).Err(); err != nil {
		r.log.Warn("Redis warm-up failed for key %s: %v", key, err)
	}
	return val, nil
}

// Set сохраняет значение в Redis.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	defer r.stats.recordLatency(start)

	if err := r.client.Set(ctx, key, value, r.config.clampTTL(ttl)).Err(); err != nil {
		r.log.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из Redis.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Invalidate удаляет ключ и уведомляет другие узлы.
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	if err := r.Delete(ctx, key); err != nil {
		return err
	}
	if r.invalidator == nil {
		return nil
	}
	return r.invalidator.PublishInvalidation(ctx, key)
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.log.Error("Error closing Redis connection: %v", err)
		return err
	}
	r.log.Info("Redis cache closed")
	return nil
}

// GetMetrics возвращает текущие метрики кеша.
func (r *RedisCache) GetMetrics() CacheMetrics { return r.stats.snapshot() }
