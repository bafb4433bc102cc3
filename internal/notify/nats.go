package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"scholarportal.org/internal/auth"
)

// DefaultSubject is where codes are published when no subject is configured.
const DefaultSubject = "portal.auth.codes"

// Publisher is the subset of *nats.Conn the sender uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ auth.CodeSender = (*NATSSender)(nil)

// NATSSender publishes codes for a mailer worker to pick up.
type NATSSender struct {
	pub     Publisher
	subject string
	timeout time.Duration
}

// NewNATSSender wraps pub. An empty subject means DefaultSubject.
func NewNATSSender(pub Publisher, subject string) (*NATSSender, error) {
	if pub == nil {
		return nil, errors.New("notify: publisher is nil")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSender{pub: pub, subject: subject, timeout: 5 * time.Second}, nil
}

// Subject returns the publish subject.
func (s *NATSSender) Subject() string { return s.subject }

// Send publishes the code to "<subject>.<purpose>" and waits for the server to ack the flush.
func (s *NATSSender) Send(ctx context.Context, d auth.Delivery) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(messageFor(d))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	subject := s.subject + "." + string(d.Purpose)
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pub.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// Dial connects to NATS with reconnects enabled.
func Dial(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
