package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAPIKeyCache maps API key hashes to tenant IDs in Redis so that the
// hot metering path does not hit the database for every key lookup.
// Entries expire on a TTL and are invalidated on key rotation.
type RedisAPIKeyCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisAPIKeyCache creates a new Redis-backed API key cache
func NewRedisAPIKeyCache(cfg RedisConfig, ttl time.Duration) (*RedisAPIKeyCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAPIKeyCacheWithClient(client, "", ttl), nil
}

// NewRedisAPIKeyCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisAPIKeyCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisAPIKeyCache {
	if keyPrefix == "" {
		keyPrefix = "auth:apikey:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisAPIKeyCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get returns the tenant ID cached for the key hash.
// The boolean is false on a cache miss.
func (c *RedisAPIKeyCache) Get(ctx context.Context, keyHash string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+keyHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to read api key cache: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		// Corrupt entry, treat as a miss so the caller reloads from the store
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Set caches the tenant ID for the key hash
func (c *RedisAPIKeyCache) Set(ctx context.Context, keyHash string, tenantID uuid.UUID) error {
	if err := c.client.Set(ctx, c.keyPrefix+keyHash, tenantID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write api key cache: %w", err)
	}
	return nil
}

// Invalidate drops the cache entry for the key hash. Called when a key is
// rotated or a tenant is deleted.
func (c *RedisAPIKeyCache) Invalidate(ctx context.Context, keyHash string) error {
	if err := c.client.Del(ctx, c.keyPrefix+keyHash).Err(); err != nil {
		return fmt.Errorf("failed to invalidate api key cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisAPIKeyCache) Close() error {
	return c.client.Close()
}
