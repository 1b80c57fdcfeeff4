// Package cache stores encoded diagnoses in Redis keyed by input digest.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "cropdoctor:diagnosis:"

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache wraps the Redis client.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a RedisCache. No connection is made until first use; call
// Ping to check reachability.
func NewRedis(cfg Config) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return NewFromClient(rdb, cfg.TTL)
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: rdb, ttl: ttl}
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get returns the value for key. A missing key is ok=false with a nil error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
