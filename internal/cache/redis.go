package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
)

const keyPrefix = "castarchive"

// Redis stores cache entries as plain Redis strings without expiry
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at cfg.RedisURL
func NewRedis(cfg *config.CacheConfig) (*Redis, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &Redis{client: client}, nil
}

// Get retrieves a value from cache
func (c *Redis) Get(ctx context.Context, bucket Bucket, key string) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, ErrCacheClosed
	}
	data, err := c.client.Get(ctx, c.namespaceKey(string(bucket)+":"+key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores a value with no TTL
func (c *Redis) Put(ctx context.Context, bucket Bucket, key string, value []byte) error {
	if c == nil || c.client == nil {
		return ErrCacheClosed
	}
	return c.client.Set(ctx, c.namespaceKey(string(bucket)+":"+key), value, 0).Err()
}

// Close closes the Redis connection
func (c *Redis) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Redis) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheClosed
	}
	return c.client.Ping(ctx).Err()
}

func (c *Redis) namespaceKey(key string) string {
	return keyPrefix + ":" + key
}

var (
	// ErrCacheClosed is returned when a closed or nil cache is used
	ErrCacheClosed = fmt.Errorf("cache is closed")
)
