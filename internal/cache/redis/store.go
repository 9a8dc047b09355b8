// Package redis provides a Redis-backed implementation of cache.Store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vitalstats/internal/cache"
	"vitalstats/internal/config"
	"vitalstats/internal/domain"
	"vitalstats/internal/metrics"
)

// keyPrefix namespaces every cache key so Clear only touches our entries.
const keyPrefix = "vitalstats:cache:"

const scanBatch = 500

// Store implements cache.Store using Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// storedEntry is the value written under each Redis key.
type storedEntry struct {
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"stored_at"`
}

// NewStore creates a new Redis-backed cache store. A zero ttl keeps keys until deleted.
func NewStore(cfg *config.RedisConfig, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return keyPrefix + key
}

// Get retrieves the entry for key. Returns nil, nil on a miss.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	start := time.Now()
	defer observe("get", start)

	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			count("get", "success")
			return nil, nil
		}
		count("get", "failure")
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	count("get", "success")

	return decodeEntry(key, data)
}

// Put stores the entry with the configured TTL.
func (s *Store) Put(ctx context.Context, entry *cache.Entry) error {
	start := time.Now()
	defer observe("put", start)

	data, err := encodeEntry(entry)
	if err != nil {
		count("put", "failure")
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, redisKey(entry.Key), data, s.ttl).Err(); err != nil {
		count("put", "failure")
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	count("put", "success")
	return nil
}

// Delete removes a single key.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer observe("delete", start)

	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		count("delete", "failure")
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	count("delete", "success")
	return nil
}

// Clear scans for every prefixed key and deletes them in batches.
func (s *Store) Clear(ctx context.Context) error {
	start := time.Now()
	defer observe("clear", start)

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			count("clear", "failure")
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				count("clear", "failure")
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	count("clear", "success")
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func encodeEntry(entry *cache.Entry) ([]byte, error) {
	return json.Marshal(storedEntry{Payload: entry.Payload, StoredAt: entry.StoredAt})
}

// decodeEntry reverses encodeEntry. Undecodable values are reported as corrupt.
func decodeEntry(key string, data []byte) (*cache.Entry, error) {
	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, &domain.CacheDeserializationError{Key: key, Err: err}
	}

	return &cache.Entry{
		Key:      key,
		Payload:  stored.Payload,
		StoredAt: stored.StoredAt,
	}, nil
}

func observe(operation string, start time.Time) {
	metrics.StorageOperationLatency.WithLabelValues("redis", operation).Observe(time.Since(start).Seconds())
}

func count(operation, status string) {
	metrics.StorageOperationsTotal.WithLabelValues("redis", operation, status).Inc()
}
