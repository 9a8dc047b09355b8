// Package cache defines the key-value store used to keep backend responses
// between dashboard loads, along with deterministic key construction.
// Backends live in the memory, redis and postgres subpackages.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Entry is a cached payload. Payload holds JSON as produced by Save.
type Entry struct {
	Key      string    `json:"key"`
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is an injected key-value store. Implementations must be safe for
// concurrent use. Put is last-write-wins.
type Store interface {
	// Get returns the entry for key.
	// Returns nil, nil if the key is absent or expired.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put stores or replaces the entry under entry.Key.
	Put(ctx context.Context, entry *Entry) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by the store.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Kind names the type of data stored under a key.
type Kind string

const (
	KindRegions               Kind = "regioes"
	KindStates                Kind = "estados"
	KindStateStatistics       Kind = "ufStats"
	KindMunicipalities        Kind = "municipios"
	KindMunicipalityStatistic Kind = "municipioStats"
)

// Kinds lists every kind the service writes.
var Kinds = []Kind{
	KindRegions,
	KindStates,
	KindStateStatistics,
	KindMunicipalities,
	KindMunicipalityStatistic,
}

// IsValid returns true if the kind is one the service writes.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Key builds "<kind>_<p1>_<p2>..." from an ordered tuple.
// The same kind and parts always produce the same key.
func Key(kind Kind, parts ...any) string {
	var b strings.Builder
	b.WriteString(string(kind))
	for _, p := range parts {
		b.WriteByte('_')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// KindOf returns the kind prefix of a key built by Key.
func KindOf(key string) Kind {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		return Kind(key[:i])
	}
	return Kind(key)
}
