// Package cache keeps complete raw API responses so an already-ingested feed or
// conversation never touches the network again. Entries are never refreshed or evicted.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// Bucket is one independent keyed store
type Bucket string

const (
	// BucketCasts holds assembled top-level feeds keyed by fid
	BucketCasts Bucket = "casts"
	// BucketReplies holds assembled reply feeds keyed by fid
	BucketReplies Bucket = "replies"
	// BucketConversations holds merged conversations keyed by root hash
	BucketConversations Bucket = "conversations"
)

// Buckets lists every bucket a backend must provide
var Buckets = []Bucket{BucketCasts, BucketReplies, BucketConversations}

// Store is a durable key to JSON blob store with upsert semantics
type Store interface {
	// Get returns the stored payload and true, or false on a miss
	Get(ctx context.Context, bucket Bucket, key string) ([]byte, bool, error)
	// Put inserts or replaces the payload under key
	Put(ctx context.Context, bucket Bucket, key string, value []byte) error
	Close() error
}

// Open returns the Redis backend when a Redis URL is configured, the sqlite file otherwise
func Open(cfg *config.CacheConfig) (Store, error) {
	if cfg.RedisURL != "" {
		return NewRedis(cfg)
	}
	return NewSQLite(cfg.Path)
}

// GetOrFetch returns the cached value for key, or calls fetch and caches its result.
// A hit returns the stored payload verbatim; fetch is not called.
func GetOrFetch[T any](ctx context.Context, store Store, bucket Bucket, key string, logger *zap.Logger, fetch func(ctx context.Context) (T, error)) (T, bool, error) {
	var value T
	logger = logging.OrNop(logger)

	data, ok, err := store.Get(ctx, bucket, key)
	if err != nil {
		return value, false, fmt.Errorf("cache get %s/%s: %w", bucket, key, err)
	}
	if ok {
		if err := json.Unmarshal(data, &value); err != nil {
			return value, true, fmt.Errorf("corrupt cache entry %s/%s: %w", bucket, key, err)
		}
		telemetry.Add(ctx, telemetry.CacheHits, 1, attribute.String("bucket", string(bucket)))
		logger.Debug("Cache hit", zap.String("bucket", string(bucket)), zap.String("key", key))
		return value, true, nil
	}

	value, err = fetch(ctx)
	if err != nil {
		return value, false, err
	}

	data, err = json.Marshal(value)
	if err != nil {
		return value, false, fmt.Errorf("failed to encode %s/%s for cache: %w", bucket, key, err)
	}
	if err := store.Put(ctx, bucket, key, data); err != nil {
		logger.Warn("Failed to write cache entry",
			zap.String("bucket", string(bucket)),
			zap.String("key", key),
			zap.Error(err))
	}
	return value, false, nil
}
