// Package memory provides an in-memory implementation of cache.Store.
// It is used in memory mode and in tests, without external dependencies.
package memory

import (
	"context"
	"sync"
	"time"

	"vitalstats/internal/cache"
)

// Store is an in-memory cache.Store backed by a map with mutex protection.
// TTL expiration is checked on access (lazy expiration).
type Store struct {
	mu      sync.RWMutex
	entries map[string]*storedEntry
	ttl     time.Duration
	now     func() time.Time
}

// storedEntry wraps an entry with expiration tracking.
type storedEntry struct {
	entry     cache.Entry
	expiresAt time.Time // zero means no expiry
}

// NewStore creates an in-memory store. A zero ttl keeps entries until deleted.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*storedEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the entry for key.
// Returns nil, nil if the key does not exist or has expired.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.entries[key]
	if !exists {
		return nil, nil
	}

	// Check if expired (lazy expiration)
	if !stored.expiresAt.IsZero() && s.now().After(stored.expiresAt) {
		return nil, nil
	}

	return copyEntry(&stored.entry), nil
}

// Put stores a copy of the entry, replacing any previous value.
func (s *Store) Put(ctx context.Context, entry *cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &storedEntry{entry: *copyEntry(entry)}
	if s.ttl > 0 {
		stored.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[entry.Key] = stored
	return nil
}

// Delete removes a single key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*storedEntry)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Close releases any resources (no-op for in-memory store).
func (s *Store) Close() error {
	return nil
}

func copyEntry(e *cache.Entry) *cache.Entry {
	out := *e
	out.Payload = append([]byte(nil), e.Payload...)
	return &out
}
