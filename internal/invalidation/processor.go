package invalidation

import (
	"context"
	"encoding/json"
	"log/slog"

	"vitalstats/internal/cache"
	"vitalstats/internal/metrics"
	"vitalstats/internal/queue"
)

// Processor applies queued invalidations to the cache store.
type Processor struct {
	consumer queue.Consumer
	store    cache.Store
	logger   *slog.Logger
}

// NewProcessor creates a processor reading from consumer.
func NewProcessor(consumer queue.Consumer, store cache.Store, logger *slog.Logger) *Processor {
	return &Processor{
		consumer: consumer,
		store:    store,
		logger:   logger,
	}
}

// Start consumes invalidations until ctx is canceled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("starting invalidation processor")
	return p.consumer.Start(ctx, p.handleMessage)
}

// Stop closes the consumer.
func (p *Processor) Stop() error {
	return p.consumer.Close()
}

func (p *Processor) handleMessage(ctx context.Context, qm *queue.Message) error {
	var msg Message
	if err := json.Unmarshal(qm.Value, &msg); err != nil {
		metrics.InvalidationsAppliedTotal.WithLabelValues("unknown", "malformed").Inc()
		p.logger.Error("discarding malformed invalidation",
			"id", qm.Header(queue.HeaderMessageID),
			"error", err,
		)
		// redelivery would fail the same way
		return nil
	}

	if msg.All {
		if err := p.store.Clear(ctx); err != nil {
			metrics.InvalidationsAppliedTotal.WithLabelValues(ScopeAll, "failure").Inc()
			return err
		}
		metrics.InvalidationsAppliedTotal.WithLabelValues(ScopeAll, "success").Inc()
		p.logger.Info("cache cleared", "id", msg.ID)
		return nil
	}

	var lastErr error
	for _, key := range msg.Keys {
		if err := p.store.Delete(ctx, key); err != nil {
			lastErr = err
			p.logger.Error("failed to delete cache key", "id", msg.ID, "key", key, "error", err)
		}
	}
	if lastErr != nil {
		metrics.InvalidationsAppliedTotal.WithLabelValues(ScopeKeys, "failure").Inc()
		return lastErr
	}

	metrics.InvalidationsAppliedTotal.WithLabelValues(ScopeKeys, "success").Inc()
	p.logger.Info("cache keys invalidated", "id", msg.ID, "keys", msg.Keys)
	return nil
}
