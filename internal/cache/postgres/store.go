package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"vitalstats/internal/cache"
	"vitalstats/internal/metrics"
)

const tableCacheEntries = "cache_entries"

// Store implements cache.Store on a PostgreSQL table.
type Store struct {
	db  *DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a PostgreSQL-backed cache store. A zero ttl keeps rows until deleted.
func NewStore(db *DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Get retrieves the entry for key. Returns nil, nil if absent or expired.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	start := time.Now()
	defer observe("get", start)

	query, args, err := selectQuery(key, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var entry cache.Entry
	err = s.db.pool.QueryRow(ctx, query, args...).Scan(&entry.Key, &entry.Payload, &entry.StoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			count("get", "success")
			return nil, nil
		}
		count("get", "failure")
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	count("get", "success")
	return &entry, nil
}

// Put upserts the entry, replacing any previous payload.
func (s *Store) Put(ctx context.Context, entry *cache.Entry) error {
	start := time.Now()
	defer observe("put", start)

	var expiresAt *time.Time
	if s.ttl > 0 {
		t := s.now().UTC().Add(s.ttl)
		expiresAt = &t
	}

	query, args, err := upsertQuery(entry, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := s.db.pool.Exec(ctx, query, args...); err != nil {
		count("put", "failure")
		return fmt.Errorf("failed to put cache entry: %w", err)
	}

	count("put", "success")
	return nil
}

// Delete removes a single key.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer observe("delete", start)

	query, args, err := builder().
		Delete(tableCacheEntries).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := s.db.pool.Exec(ctx, query, args...); err != nil {
		count("delete", "failure")
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	count("delete", "success")
	return nil
}

// Clear removes every row of the cache table.
func (s *Store) Clear(ctx context.Context) error {
	start := time.Now()
	defer observe("clear", start)

	query, args, err := builder().Delete(tableCacheEntries).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build clear query: %w", err)
	}

	if _, err := s.db.pool.Exec(ctx, query, args...); err != nil {
		count("clear", "failure")
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}

	count("clear", "success")
	return nil
}

// Close is a no-op; the pool is owned by DB.
func (s *Store) Close() error {
	return nil
}

func selectQuery(key string, now time.Time) (string, []any, error) {
	return builder().
		Select("key", "payload", "stored_at").
		From(tableCacheEntries).
		Where(sq.Eq{"key": key}).
		Where(sq.Or{
			sq.Eq{"expires_at": nil},
			sq.Gt{"expires_at": now},
		}).
		ToSql()
}

func upsertQuery(entry *cache.Entry, expiresAt *time.Time) (string, []any, error) {
	return builder().
		Insert(tableCacheEntries).
		Columns("key", "payload", "stored_at", "expires_at").
		Values(entry.Key, entry.Payload, entry.StoredAt, expiresAt).
		Suffix("ON CONFLICT (key) DO UPDATE SET " +
			"payload = EXCLUDED.payload, " +
			"stored_at = EXCLUDED.stored_at, " +
			"expires_at = EXCLUDED.expires_at").
		ToSql()
}

func observe(operation string, start time.Time) {
	metrics.StorageOperationLatency.WithLabelValues("postgres", operation).Observe(time.Since(start).Seconds())
}

func count(operation, status string) {
	metrics.StorageOperationsTotal.WithLabelValues("postgres", operation, status).Inc()
}
