// Package memory is a channel-backed queue for the in-memory storage mode.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vitalstats/internal/metrics"
	"vitalstats/internal/queue"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is both Producer and Consumer over a buffered channel.
type Queue struct {
	messages chan *queue.Message
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue holding up to bufferSize undelivered messages.
func NewQueue(bufferSize int, logger *slog.Logger) *Queue {
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
		logger:   logger,
	}
}

// Publish enqueues msg, blocking while the buffer is full.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	// the read lock keeps Close from closing the channel mid-send
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
		metrics.QueueDepth.Set(float64(len(q.messages)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start delivers messages to handler until ctx is canceled or the queue is closed.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			metrics.QueueDepth.Set(float64(len(q.messages)))
			if err := handler(ctx, msg); err != nil {
				q.logger.Error("failed to handle queued message",
					"id", msg.Header(queue.HeaderMessageID),
					"error", err,
				)
			}
		}
	}
}

// Close stops accepting messages and waits for consumers to drain the buffer.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.messages)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the number of undelivered messages.
func (q *Queue) Len() int {
	return len(q.messages)
}
