package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vitalstats/internal/domain"
	"vitalstats/internal/metrics"
)

// Lookup reads key and decodes its payload into T.
//
// It returns (value, true, nil) on a hit and (zero, false, nil) on a miss.
// A payload that cannot be decoded yields (zero, false, *domain.CacheDeserializationError)
// and store failures yield (zero, false, err); callers treat both as a miss.
func Lookup[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	kind := string(KindOf(key))

	entry, err := s.Get(ctx, key)
	if err != nil {
		var corrupt *domain.CacheDeserializationError
		if errors.As(err, &corrupt) {
			metrics.CacheLookupsTotal.WithLabelValues(kind, "corrupt").Inc()
			return zero, false, err
		}
		metrics.CacheLookupsTotal.WithLabelValues(kind, "error").Inc()
		return zero, false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	if entry == nil {
		metrics.CacheLookupsTotal.WithLabelValues(kind, "miss").Inc()
		return zero, false, nil
	}

	value, err := Decode[T](entry)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(kind, "corrupt").Inc()
		return zero, false, err
	}

	metrics.CacheLookupsTotal.WithLabelValues(kind, "hit").Inc()
	return value, true, nil
}

// Decode unmarshals an entry payload into T.
func Decode[T any](entry *Entry) (T, error) {
	var value T
	if len(entry.Payload) == 0 {
		return value, &domain.CacheDeserializationError{Key: entry.Key, Err: errors.New("empty payload")}
	}
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		return value, &domain.CacheDeserializationError{Key: entry.Key, Err: err}
	}
	return value, nil
}

// Save encodes value as JSON and stores it under key.
func Save(ctx context.Context, s Store, key string, value any) error {
	kind := string(KindOf(key))

	payload, err := json.Marshal(value)
	if err != nil {
		metrics.CacheWritesTotal.WithLabelValues(kind, "failure").Inc()
		return fmt.Errorf("failed to encode cache value for %q: %w", key, err)
	}

	entry := &Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: time.Now().UTC(),
	}
	if err := s.Put(ctx, entry); err != nil {
		metrics.CacheWritesTotal.WithLabelValues(kind, "failure").Inc()
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}

	metrics.CacheWritesTotal.WithLabelValues(kind, "success").Inc()
	return nil
}
