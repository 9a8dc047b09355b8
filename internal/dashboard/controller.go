// Package dashboard holds the per-session view state of the statistics
// dashboard: the active filter, the loaded datasets, the map hover state and
// the derived totals handed to the presentation layer.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vitalstats/internal/choropleth"
	"vitalstats/internal/domain"
	"vitalstats/internal/loader"
	"vitalstats/internal/metrics"
)

// Loader provides the datasets a view is built from.
type Loader interface {
	StatesWithStatistics(ctx context.Context, year int, region domain.RegionFilter) (*loader.StateDataset, error)
	MunicipalitiesWithStatistics(ctx context.Context, stateID int64, year int) (*loader.MunicipalityDataset, error)
}

// Controller owns the view state of one dashboard session.
// The lock is never held across a load.
type Controller struct {
	id     string
	loader Loader
	logger *slog.Logger

	mu             sync.Mutex
	filter         domain.FilterState
	loading        bool
	notice         string
	err            string
	states         *loader.StateDataset
	municipalities *loader.MunicipalityDataset
	hover          Hover
	updatedAt      time.Time
	lastAccess     time.Time
}

// NewController creates an idle controller showing the given filter.
// Nothing is loaded until Apply or Reload is called.
func NewController(id string, l Loader, initial domain.FilterState, logger *slog.Logger) *Controller {
	return &Controller{
		id:     id,
		loader: l,
		logger: logger.With("session", id),
		filter: initial,
		hover:  Hover{Status: HoverIdle},
	}
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// touch records an access at t.
func (c *Controller) touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAccess = t
}

// idleSince returns the time of the last access.
func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccess
}

// Filter returns the current filter.
func (c *Controller) Filter() domain.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Apply validates and loads a new filter. Changing the year or the region
// clears the selected state.
func (c *Controller) Apply(ctx context.Context, next domain.FilterState) error {
	if err := next.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if next.Ano != c.filter.Ano || next.Regiao != c.filter.Regiao {
		next = next.WithSelection(0)
	}
	c.begin(next)
	c.mu.Unlock()

	return c.load(ctx, next)
}

// SelectState drills into a state of the current dataset.
func (c *Controller) SelectState(ctx context.Context, stateID int64) error {
	c.mu.Lock()
	if c.states == nil || domain.FindState(c.states.States, stateID) == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: uf %d", domain.ErrStateNotInView, stateID)
	}
	next := c.filter.WithSelection(stateID)
	c.begin(next)
	c.mu.Unlock()

	return c.load(ctx, next)
}

// ClearSelection goes back to the states view.
func (c *Controller) ClearSelection(ctx context.Context) error {
	c.mu.Lock()
	next := c.filter.WithSelection(0)
	c.begin(next)
	c.mu.Unlock()

	return c.load(ctx, next)
}

// Reload loads the current filter again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	current := c.filter
	c.begin(current)
	c.mu.Unlock()

	return c.load(ctx, current)
}

// HoverEnter moves the pointer onto a state of the map.
func (c *Controller) HoverEnter(stateID int64) error {
	if _, ok := choropleth.FeatureNames()[stateID]; !ok {
		return fmt.Errorf("%w: uf %d is not on the map", domain.ErrStateNotInView, stateID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hover = c.hover.Enter(stateID)
	return nil
}

// HoverLeave moves the pointer off the map.
func (c *Controller) HoverLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hover = c.hover.Leave()
}

// View renders the current state.
func (c *Controller) View() *View {
	c.mu.Lock()
	s := snapshot{
		filter:         c.filter,
		loading:        c.loading,
		notice:         c.notice,
		err:            c.err,
		states:         c.states,
		municipalities: c.municipalities,
		hover:          c.hover,
		updatedAt:      c.updatedAt,
	}
	c.mu.Unlock()

	return buildView(s)
}

// Table returns one page of the current result rows.
func (c *Controller) Table(q TableQuery) (*TablePage, error) {
	return Paginate(c.View().Rows, q)
}

// begin must be called with the lock held.
func (c *Controller) begin(next domain.FilterState) {
	c.filter = next
	c.loading = true
}

// loadResult is what one load produced for a filter snapshot.
type loadResult struct {
	states           *loader.StateDataset
	municipalities   *loader.MunicipalityDataset
	notices          []string
	err              error
	selectionMissing bool
}

// load fetches the datasets for f and publishes them unless the filter
// changed while the load was in flight.
func (c *Controller) load(ctx context.Context, f domain.FilterState) error {
	level := LevelStates
	if f.HasSelection() {
		level = LevelMunicipalities
	}

	start := time.Now()
	result := c.fetch(ctx, f)
	metrics.ViewLoadLatency.WithLabelValues(string(level)).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter.Key() != f.Key() {
		metrics.StaleResponsesDiscardedTotal.Inc()
		c.logger.Debug("discarding stale view load",
			"loaded", f.Key(),
			"current", c.filter.Key(),
		)
		return nil
	}

	c.loading = false
	c.states = result.states
	c.municipalities = result.municipalities
	c.notice = strings.Join(result.notices, " ")
	c.err = ""
	if result.err != nil {
		c.err = result.err.Error()
	}
	c.updatedAt = time.Now()

	if result.selectionMissing {
		c.filter = c.filter.WithSelection(0)
		c.municipalities = nil
		return fmt.Errorf("%w: uf %d", domain.ErrStateNotInView, f.SelectedState())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

// fetch never fails: backend errors degrade to empty datasets plus a notice.
func (c *Controller) fetch(ctx context.Context, f domain.FilterState) loadResult {
	var result loadResult

	states, err := c.loader.StatesWithStatistics(ctx, f.Ano, f.Regiao)
	if err != nil {
		c.logFailure("failed to load states", f, err)
		result.states = emptyStates()
		result.notices = append(result.notices, "Não foi possível carregar os estados.")
		result.err = err
		return result
	}
	result.states = states
	if n := len(states.Failed); n > 0 {
		result.notices = append(result.notices, fmt.Sprintf("Estatísticas indisponíveis para %d estado(s).", n))
	}

	if !f.HasSelection() {
		return result
	}
	if domain.FindState(states.States, f.SelectedState()) == nil {
		result.selectionMissing = true
		return result
	}

	municipalities, err := c.loader.MunicipalitiesWithStatistics(ctx, f.SelectedState(), f.Ano)
	if err != nil {
		c.logFailure("failed to load municipalities", f, err)
		municipalities = &loader.MunicipalityDataset{
			Municipalities: []domain.Municipality{},
			Statistics:     []domain.StatisticRecord{},
		}
		result.notices = append(result.notices, "Não foi possível carregar os municípios.")
		result.err = err
	}
	result.municipalities = municipalities
	return result
}

func (c *Controller) logFailure(msg string, f domain.FilterState, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug(msg, "filter", f.Key(), "error", err)
		return
	}
	c.logger.Warn(msg, "filter", f.Key(), "error", err)
}
