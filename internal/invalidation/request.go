// Package invalidation removes cached backend responses on demand.
// A Publisher resolves requests into explicit cache keys and queues them;
// a Processor consumes the queue and deletes the keys from the store.
package invalidation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"vitalstats/internal/cache"
	"vitalstats/internal/domain"
)

// Scope labels used in logs and metrics.
const (
	ScopeAll  = "all"
	ScopeKeys = "keys"
)

// Target names cached data by kind and the parameters of its key,
// in key order: estados takes ano and regiao, ufStats and municipioStats
// take uf and ano, municipios takes uf, regioes takes none.
type Target struct {
	Kind   cache.Kind `json:"kind"`
	Params []string   `json:"params"`
}

// Request asks for cache entries to be dropped.
type Request struct {
	All     bool     `json:"all"`
	Keys    []string `json:"keys,omitempty"`
	Targets []Target `json:"targets,omitempty"`
}

// Message is the queued form of a resolved request.
type Message struct {
	ID          string    `json:"id"`
	All         bool      `json:"all"`
	Keys        []string  `json:"keys,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Scope returns ScopeAll or ScopeKeys.
func (m *Message) Scope() string {
	if m.All {
		return ScopeAll
	}
	return ScopeKeys
}

var arity = map[cache.Kind]int{
	cache.KindRegions:               0,
	cache.KindStates:                2,
	cache.KindStateStatistics:       2,
	cache.KindMunicipalities:        1,
	cache.KindMunicipalityStatistic: 2,
}

// Resolve validates the request and returns the sorted, de-duplicated keys
// it names. A request for everything resolves to no keys.
func (r *Request) Resolve() ([]string, error) {
	if r.All {
		return nil, nil
	}
	if len(r.Keys) == 0 && len(r.Targets) == 0 {
		return nil, domain.NewValidationError("keys", "set all, keys or targets")
	}

	problems := map[string][]string{}
	seen := map[string]bool{}

	for i, key := range r.Keys {
		key = strings.TrimSpace(key)
		if !cache.KindOf(key).IsValid() {
			field := fmt.Sprintf("keys[%d]", i)
			problems[field] = append(problems[field], fmt.Sprintf("unknown kind in %q", key))
			continue
		}
		seen[key] = true
	}

	for i, target := range r.Targets {
		key, err := target.key()
		if err != nil {
			field := fmt.Sprintf("targets[%d]", i)
			problems[field] = append(problems[field], err.Error())
			continue
		}
		seen[key] = true
	}

	if len(problems) > 0 {
		return nil, &domain.ValidationError{Problems: problems}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (t Target) key() (string, error) {
	want, ok := arity[t.Kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %q", t.Kind)
	}
	if len(t.Params) != want {
		return "", fmt.Errorf("%s takes %d params, got %d", t.Kind, want, len(t.Params))
	}

	parts := make([]any, 0, len(t.Params))
	for i, p := range t.Params {
		p = strings.TrimSpace(p)
		// the region of a states list may be "todas"
		if t.Kind == cache.KindStates && i == 1 {
			region, err := domain.ParseRegionFilter(p)
			if err != nil || p == "" {
				return "", fmt.Errorf("invalid regiao %q", p)
			}
			parts = append(parts, region)
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("param %d must be a positive integer, got %q", i, p)
		}
		parts = append(parts, n)
	}
	return cache.Key(t.Kind, parts...), nil
}
