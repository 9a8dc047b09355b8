// Package queue carries cache invalidation messages between the API that
// accepts them and the processor that applies them to the cache store.
// Backends are swappable: an in-process channel or Kafka.
package queue

import (
	"context"
)

// Header keys set on every invalidation message.
const (
	HeaderMessageID   = "message-id"
	HeaderContentType = "content-type"
)

// Message is one queued payload.
type Message struct {
	// Key selects the partition; messages sharing a key are delivered in order.
	Key []byte

	Value []byte

	Headers map[string]string
}

// Header returns a header value, or the empty string.
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Producer publishes messages. Implementations must be safe for concurrent use.
type Producer interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

// MessageHandler processes one consumed message. A returned error is logged
// by the consumer; the message is not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer delivers messages to a handler.
type Consumer interface {
	// Start blocks until ctx is canceled or the consumer is closed.
	Start(ctx context.Context, handler MessageHandler) error
	Close() error
}
