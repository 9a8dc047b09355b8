package invalidation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vitalstats/internal/metrics"
	"vitalstats/internal/queue"
)

// ErrPublishFailed is returned when the queue rejects a message.
var ErrPublishFailed = errors.New("failed to publish invalidation")

// Publisher validates invalidation requests and queues them.
type Publisher struct {
	producer queue.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher creates a publisher writing to producer.
func NewPublisher(producer queue.Producer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish resolves req and queues it. The returned message carries the
// assigned id and the resolved keys.
func (p *Publisher) Publish(ctx context.Context, req *Request) (*Message, error) {
	keys, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:          uuid.NewString(),
		All:         req.All,
		Keys:        keys,
		RequestedAt: p.now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize invalidation: %w", err)
	}

	queued := &queue.Message{
		Key:   []byte(partitionKey(msg)),
		Value: payload,
		Headers: map[string]string{
			queue.HeaderMessageID:   msg.ID,
			queue.HeaderContentType: "application/json",
		},
	}
	if err := p.producer.Publish(ctx, queued); err != nil {
		p.logger.Error("failed to publish invalidation", "id", msg.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	metrics.InvalidationsPublishedTotal.WithLabelValues(msg.Scope()).Inc()
	p.logger.Info("invalidation published",
		"id", msg.ID,
		"scope", msg.Scope(),
		"keys", len(msg.Keys),
	)
	return msg, nil
}

// partitionKey is deterministic in the resolved keys so repeated
// invalidations of the same data stay ordered.
func partitionKey(msg *Message) string {
	input := ScopeAll
	if !msg.All {
		input = strings.Join(msg.Keys, ",")
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
