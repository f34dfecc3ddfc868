package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/casedesk/intake/common/config"
	"github.com/casedesk/intake/common/logger"
	"github.com/casedesk/intake/common/queue"
)

// TopicReportCreated carries events for newly created reports
const TopicReportCreated = "report.created"

// ReportCreatedEvent is the notification payload published after a
// report is durably created
type ReportCreatedEvent struct {
	ReportID    string    `json:"report_id"`
	Type        string    `json:"type"`
	IsAnonymous bool      `json:"is_anonymous"`
	Attachments int       `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

// Mailer delivers a notification message
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPMailer sends plain-text mail over SMTP
type SMTPMailer struct {
	cfg config.NotifyConfig
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg config.NotifyConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message to the configured recipients
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	if len(m.cfg.To) == 0 {
		return fmt.Errorf("no notification recipients configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.From, strings.Join(m.cfg.To, ", "), subject, body)

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	if err := smtp.SendMail(addr, nil, m.cfg.From, m.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Notifier consumes report.created events and delivers notifications
// with a bounded best-effort retry. Exhausted events are dead-lettered
// to the log and dropped; delivery failures never reach the submitter.
type Notifier struct {
	queue   queue.Queue
	mailer  Mailer
	retries int
	backoff time.Duration
	log     *logger.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(notifyQueue queue.Queue, mailer Mailer, retries int, log *logger.Logger) *Notifier {
	if retries < 1 {
		retries = 1
	}
	return &Notifier{
		queue:   notifyQueue,
		mailer:  mailer,
		retries: retries,
		backoff: time.Second,
		log:     log,
	}
}

// Start subscribes to the report.created topic
func (n *Notifier) Start(ctx context.Context) error {
	return n.queue.Subscribe(ctx, TopicReportCreated, n.handle)
}

func (n *Notifier) handle(ctx context.Context, key string, value []byte) error {
	var event ReportCreatedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		n.log.Error("malformed notification event", "key", key, "error", err)
		return nil // not retryable
	}

	subject := fmt.Sprintf("New report received: %s", event.Type)
	body := fmt.Sprintf(
		"A new report was submitted.\n\nCase ID: %s\nType: %s\nAnonymous: %t\nAttachments: %d\nReceived: %s\n",
		event.ReportID, event.Type, event.IsAnonymous, event.Attachments,
		event.CreatedAt.Format(time.RFC3339),
	)

	var lastErr error
	for attempt := 1; attempt <= n.retries; attempt++ {
		if lastErr = n.mailer.Send(ctx, subject, body); lastErr == nil {
			n.log.Info("notification sent", "report_id", event.ReportID, "attempt", attempt)
			return nil
		}

		n.log.Warn("notification send failed",
			"report_id", event.ReportID,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < n.retries {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(attempt) * n.backoff):
			}
		}
	}

	n.log.Error("notification dead-lettered",
		"report_id", event.ReportID,
		"attempts", n.retries,
		"error", lastErr,
	)
	return nil
}
