package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/casedesk/intake/common/logger"
)

// Queue carries intake events between the pipeline and its in-process
// consumers. A broker-backed implementation can slot in behind the same
// interface.
type Queue interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// topicBuffer bounds each topic's backlog. Publishing past it drops the
// event; delivery on this path is best-effort.
const topicBuffer = 256

// MemoryQueue is an in-process queue for single-binary deployments
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string]chan message
	closed bool
	log    *logger.Logger
}

type message struct {
	key   string
	value []byte
}

// NewMemoryQueue creates a new in-process queue
func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		topics: make(map[string]chan message),
		log:    log,
	}
}

// topic returns the topic's channel, creating it on first use.
// Caller holds q.mu.
func (q *MemoryQueue) topic(name string) chan message {
	ch, exists := q.topics[name]
	if !exists {
		ch = make(chan message, topicBuffer)
		q.topics[name] = ch
	}
	return ch
}

// Publish enqueues a message for the topic's subscribers. A full topic
// drops the message with a warning instead of blocking the publisher.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}

	select {
	case q.topic(topic) <- message{key: key, value: value}:
		return nil
	default:
		q.log.Warn("queue full, dropping event", "topic", topic, "key", key)
		return nil
	}
}

// Subscribe consumes the topic until the context is cancelled or the
// queue is closed
func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	ch := q.topic(topic)
	q.mu.Unlock()

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					q.log.Info("topic closed", "topic", topic)
					return
				}
				if err := handler(ctx, msg.key, msg.value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", msg.key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops accepting publishes and terminates subscribers once they
// drain their backlog
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for topic, ch := range q.topics {
		close(ch)
		q.log.Info("closed topic", "topic", topic)
	}

	return nil
}
