package queue

import (
	"context"
	"testing"
	"time"

	"github.com/casedesk/intake/common/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func TestPublishSubscribe(t *testing.T) {
	q := NewMemoryQueue(testLogger())
	defer q.Close()
	ctx := context.Background()

	received := make(chan string, 1)
	err := q.Subscribe(ctx, "events", func(ctx context.Context, key string, value []byte) error {
		received <- key + ":" + string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := q.Publish(ctx, "events", "k1", []byte("v1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got != "k1:v1" {
			t.Errorf("expected k1:v1, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestCloseWithActiveSubscriber(t *testing.T) {
	q := NewMemoryQueue(testLogger())
	ctx := context.Background()

	handled := make(chan struct{}, 1)
	if err := q.Subscribe(ctx, "events", func(ctx context.Context, key string, value []byte) error {
		handled <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := q.Publish(ctx, "events", "k1", []byte("v1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("message never handled")
	}

	// Closing the topic under the subscriber must terminate it cleanly,
	// not panic it.
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := q.Publish(ctx, "events", "k2", []byte("v2")); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Subscribe(ctx, "events", func(ctx context.Context, key string, value []byte) error {
		return nil
	}); err == nil {
		t.Error("expected error subscribing to a closed queue")
	}
}

func TestCloseIdempotent(t *testing.T) {
	q := NewMemoryQueue(testLogger())
	if err := q.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPublishFullTopicDrops(t *testing.T) {
	q := NewMemoryQueue(testLogger())
	defer q.Close()
	ctx := context.Background()

	// No subscriber drains the topic; overflow must not block or fail.
	for i := 0; i < topicBuffer+10; i++ {
		if err := q.Publish(ctx, "events", "k", []byte("v")); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
}
