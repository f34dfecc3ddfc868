package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/casedesk/intake/common/queue"
)

// flakyMailer fails a fixed number of sends before succeeding
type flakyMailer struct {
	failures int
	sent     int
	subjects []string
}

func (m *flakyMailer) Send(ctx context.Context, subject, body string) error {
	m.sent++
	if m.sent <= m.failures {
		return errors.New("connection refused")
	}
	m.subjects = append(m.subjects, subject)
	return nil
}

func eventPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(ReportCreatedEvent{
		ReportID:    "8b9e2e0a-3a89-4a62-b44c-0a1c1ba7c1de",
		Type:        "harassment",
		IsAnonymous: true,
		Attachments: 2,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func TestNotifierDeliversFirstAttempt(t *testing.T) {
	mailer := &flakyMailer{}
	n := NewNotifier(queue.NewMemoryQueue(testLogger()), mailer, 3, testLogger())

	if err := n.handle(context.Background(), "k", eventPayload(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mailer.sent != 1 {
		t.Errorf("expected 1 send, got %d", mailer.sent)
	}
	if len(mailer.subjects) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(mailer.subjects))
	}
}

func TestNotifierRetriesThenDelivers(t *testing.T) {
	mailer := &flakyMailer{failures: 2}
	n := NewNotifier(queue.NewMemoryQueue(testLogger()), mailer, 3, testLogger())
	n.backoff = time.Millisecond

	if err := n.handle(context.Background(), "k", eventPayload(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mailer.sent != 3 {
		t.Errorf("expected 3 attempts, got %d", mailer.sent)
	}
	if len(mailer.subjects) != 1 {
		t.Errorf("expected delivery on final attempt")
	}
}

func TestNotifierDeadLettersAfterExhaustion(t *testing.T) {
	mailer := &flakyMailer{failures: 10}
	n := NewNotifier(queue.NewMemoryQueue(testLogger()), mailer, 3, testLogger())
	n.backoff = time.Millisecond

	// Exhaustion drops the event without surfacing an error.
	if err := n.handle(context.Background(), "k", eventPayload(t)); err != nil {
		t.Fatalf("handle after exhaustion: %v", err)
	}
	if mailer.sent != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", mailer.sent)
	}
}

func TestNotifierIgnoresMalformedEvent(t *testing.T) {
	mailer := &flakyMailer{}
	n := NewNotifier(queue.NewMemoryQueue(testLogger()), mailer, 3, testLogger())

	if err := n.handle(context.Background(), "k", []byte("not json")); err != nil {
		t.Fatalf("handle malformed: %v", err)
	}
	if mailer.sent != 0 {
		t.Errorf("malformed event reached the mailer")
	}
}
