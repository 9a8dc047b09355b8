// Package kafka carries invalidation messages over a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"vitalstats/internal/config"
	"vitalstats/internal/metrics"
	"vitalstats/internal/queue"
)

// Producer implements queue.Producer on a kafka.Writer.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a producer for the configured topic.
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// Publish writes msg synchronously.
func (p *Producer) Publish(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	if err := p.writer.WriteMessages(ctx, toKafka(msg)); err != nil {
		return fmt.Errorf("failed to write invalidation to kafka: %w", err)
	}

	metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
	p.logger.Debug("invalidation published to kafka",
		"topic", p.writer.Topic,
		"id", msg.Header(queue.HeaderMessageID),
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// toKafka converts a queue message, emitting headers in key order.
func toKafka(msg *queue.Message) kafka.Message {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	if len(msg.Headers) == 0 {
		return out
	}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out.Headers = make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out.Headers = append(out.Headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return out
}

// fromKafka converts a fetched message.
func fromKafka(msg kafka.Message) *queue.Message {
	out := &queue.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: make(map[string]string, len(msg.Headers)),
	}
	for _, h := range msg.Headers {
		out.Headers[h.Key] = string(h.Value)
	}
	return out
}
