// Package loader serves backend data through the cache.
// Every read checks the cache first, fetches from the backend on a miss and
// stores the result. Concurrent misses on the same key share one fetch.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vitalstats/internal/cache"
	"vitalstats/internal/domain"
	"vitalstats/internal/metrics"
)

// Gateway is the subset of the backend client the loader reads from.
type Gateway interface {
	Regions(ctx context.Context) ([]domain.Region, error)
	States(ctx context.Context, region domain.RegionFilter) ([]domain.State, error)
	MunicipalitiesByState(ctx context.Context, stateID int64) ([]domain.Municipality, error)
	StateStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error)
	MunicipalityStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error)
}

// StateDataset is the states of a region with their statistics for one year.
type StateDataset struct {
	States     []domain.State                     `json:"states"`
	Statistics map[int64][]domain.StatisticRecord `json:"statistics"`

	// Failed lists states whose statistics could not be fetched; they map to an empty set.
	Failed []int64 `json:"failed,omitempty"`
}

// MunicipalityDataset is the municipalities of a state with their statistics for one year.
type MunicipalityDataset struct {
	Municipalities []domain.Municipality    `json:"municipalities"`
	Statistics     []domain.StatisticRecord `json:"statistics"`
}

// Loader reads backend data through the cache.
type Loader struct {
	gateway     Gateway
	store       cache.Store
	logger      *slog.Logger
	fanOutLimit int
	group       singleflight.Group
}

// New creates a loader. fanOutLimit bounds concurrent per-state requests.
func New(gateway Gateway, store cache.Store, fanOutLimit int, logger *slog.Logger) *Loader {
	if fanOutLimit <= 0 {
		fanOutLimit = 1
	}
	return &Loader{
		gateway:     gateway,
		store:       store,
		logger:      logger,
		fanOutLimit: fanOutLimit,
	}
}

// Regions returns every macro-region.
func (l *Loader) Regions(ctx context.Context) ([]domain.Region, error) {
	return cached(ctx, l, cache.Key(cache.KindRegions), func(ctx context.Context) ([]domain.Region, error) {
		return l.gateway.Regions(ctx)
	})
}

// States returns the states of a region. The key carries the year so a
// year switch reloads the list together with its statistics.
func (l *Loader) States(ctx context.Context, year int, region domain.RegionFilter) ([]domain.State, error) {
	key := cache.Key(cache.KindStates, year, region)
	return cached(ctx, l, key, func(ctx context.Context) ([]domain.State, error) {
		return l.gateway.States(ctx, region)
	})
}

// StateStatistics returns the records of one state for one year.
func (l *Loader) StateStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error) {
	key := cache.Key(cache.KindStateStatistics, stateID, year)
	return cached(ctx, l, key, func(ctx context.Context) ([]domain.StatisticRecord, error) {
		return l.gateway.StateStatistics(ctx, stateID, year)
	})
}

// Municipalities returns the municipalities of one state.
func (l *Loader) Municipalities(ctx context.Context, stateID int64) ([]domain.Municipality, error) {
	key := cache.Key(cache.KindMunicipalities, stateID)
	return cached(ctx, l, key, func(ctx context.Context) ([]domain.Municipality, error) {
		return l.gateway.MunicipalitiesByState(ctx, stateID)
	})
}

// MunicipalityStatistics returns the municipality records of one state for one year.
func (l *Loader) MunicipalityStatistics(ctx context.Context, stateID int64, year int) ([]domain.StatisticRecord, error) {
	key := cache.Key(cache.KindMunicipalityStatistic, stateID, year)
	return cached(ctx, l, key, func(ctx context.Context) ([]domain.StatisticRecord, error) {
		return l.gateway.MunicipalityStatistics(ctx, stateID, year)
	})
}

// StatesWithStatistics loads the states of a region and fans out one statistics
// request per state. A failed state resolves to an empty set and is listed in
// Failed; only a failure of the states list itself is returned as an error.
func (l *Loader) StatesWithStatistics(ctx context.Context, year int, region domain.RegionFilter) (*StateDataset, error) {
	states, err := l.States(ctx, year, region)
	if err != nil {
		return nil, err
	}

	dataset := &StateDataset{
		States:     states,
		Statistics: make(map[int64][]domain.StatisticRecord, len(states)),
	}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.fanOutLimit)

	for _, state := range states {
		eg.Go(func() error {
			records, err := l.StateStatistics(egCtx, state.ID, year)
			if err != nil {
				metrics.FanOutFailuresTotal.Inc()
				l.logger.Warn("state statistics unavailable",
					"uf", state.ID,
					"ano", year,
					"error", err,
				)
				records = []domain.StatisticRecord{}
			}

			mu.Lock()
			defer mu.Unlock()
			dataset.Statistics[state.ID] = records
			if err != nil {
				dataset.Failed = append(dataset.Failed, state.ID)
			}
			return nil
		})
	}

	// goroutines never return errors; per-state failures are isolated above
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(dataset.Failed, func(i, j int) bool { return dataset.Failed[i] < dataset.Failed[j] })
	return dataset, nil
}

// MunicipalitiesWithStatistics loads the municipalities of a state and their statistics concurrently.
func (l *Loader) MunicipalitiesWithStatistics(ctx context.Context, stateID int64, year int) (*MunicipalityDataset, error) {
	dataset := &MunicipalityDataset{}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		municipalities, err := l.Municipalities(egCtx, stateID)
		if err != nil {
			return err
		}
		dataset.Municipalities = municipalities
		return nil
	})
	eg.Go(func() error {
		records, err := l.MunicipalityStatistics(egCtx, stateID, year)
		if err != nil {
			return err
		}
		dataset.Statistics = records
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return dataset, nil
}

// cached implements cache-aside for one key.
func cached[T any](ctx context.Context, l *Loader, key string, fetch func(context.Context) (T, error)) (T, error) {
	value, hit, err := cache.Lookup[T](ctx, l.store, key)
	if err != nil {
		var corrupt *domain.CacheDeserializationError
		if errors.As(err, &corrupt) {
			l.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		} else {
			l.logger.Error("cache read failed, fetching from backend", "key", key, "error", err)
		}
	}
	if hit {
		return value, nil
	}

	// Concurrent misses on the same key share one backend call. The shared
	// fetch is detached from the first caller's cancellation; the backend
	// client's timeout bounds it. Each caller stops waiting on its own ctx.
	ch := l.group.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		fetched, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := cache.Save(fetchCtx, l.store, key, fetched); err != nil {
			l.logger.Error("cache write failed", "key", key, "error", err)
		}
		return fetched, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
