package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalstats/internal/domain"
	"vitalstats/internal/metrics"
)

// Sessions is the registry of live dashboard controllers.
// Sessions not read for ttl are evicted.
type Sessions struct {
	loader      Loader
	logger      *slog.Logger
	defaultYear int
	maxSessions int
	ttl         time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewSessions creates an empty registry. A zero ttl keeps sessions until deleted.
func NewSessions(l Loader, defaultYear, maxSessions int, ttl time.Duration, logger *slog.Logger) *Sessions {
	return &Sessions{
		loader:      l,
		logger:      logger,
		defaultYear: defaultYear,
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
		sessions:    make(map[string]*Controller),
	}
}

// Create registers a new session and loads its first view.
// A nil filter starts from the default filter. Idle sessions are evicted
// before the limit is checked.
func (s *Sessions) Create(ctx context.Context, initial *domain.FilterState) (*Controller, error) {
	filter := domain.DefaultFilter(s.defaultYear)
	if initial != nil {
		filter = *initial
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	s.mu.Lock()
	s.reapLocked(now)
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return nil, domain.ErrSessionLimit
	}
	id := uuid.NewString()
	ctrl := NewController(id, s.loader, filter.WithSelection(0), s.logger)
	ctrl.touch(now)
	s.sessions[id] = ctrl
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	s.logger.Info("dashboard session created", "session", id)

	if err := ctrl.Apply(ctx, filter); err != nil && !errors.Is(err, domain.ErrStateNotInView) {
		// the id is never returned, so the session must not stay registered
		s.remove(id)
		return nil, err
	}
	return ctrl, nil
}

// Get returns a session by id and marks it as accessed.
func (s *Sessions) Get(id string) (*Controller, error) {
	now := s.now()

	s.mu.RLock()
	ctrl, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || s.expired(ctrl, now) {
		return nil, domain.ErrSessionNotFound
	}

	ctrl.touch(now)
	return ctrl, nil
}

// Delete removes a session.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Info("dashboard session closed", "session", id)
	return nil
}

// Reap evicts every idle session and returns how many were removed.
func (s *Sessions) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked(s.now())
}

// StartReaper calls Reap every interval until ctx is canceled.
func (s *Sessions) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Len returns the number of registered sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

// reapLocked must be called with the write lock held.
func (s *Sessions) reapLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	reaped := 0
	for id, ctrl := range s.sessions {
		if s.expired(ctrl, now) {
			delete(s.sessions, id)
			reaped++
		}
	}
	if reaped > 0 {
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Info("evicted idle dashboard sessions", "count", reaped, "live", len(s.sessions))
	}
	return reaped
}

func (s *Sessions) expired(ctrl *Controller, now time.Time) bool {
	return s.ttl > 0 && now.Sub(ctrl.idleSince()) > s.ttl
}
