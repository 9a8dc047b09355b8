package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"vitalstats/internal/config"
	"vitalstats/internal/queue"
)

// Consumer implements queue.Consumer on a consumer-group kafka.Reader.
// With a shared cache store one member of the group applies each message.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a consumer joined to the configured group.
func NewConsumer(cfg *config.KafkaConfig, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.ConsumerGroup,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		logger: logger,
	}
}

// Start fetches, handles and commits messages until ctx is canceled.
// Handler errors are logged and the message is committed anyway so a bad
// invalidation cannot block the partition.
func (c *Consumer) Start(ctx context.Context, handler queue.MessageHandler) error {
	cfg := c.reader.Config()
	c.logger.Info("starting kafka consumer", "topic", cfg.Topic, "group", cfg.GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer stopping")
				return ctx.Err()
			}
			// the reader was closed
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("failed to fetch invalidation", "error", err)
			continue
		}

		if err := handler(ctx, fromKafka(msg)); err != nil {
			c.logger.Error("failed to apply invalidation",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

// Close leaves the group and closes the reader.
func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
