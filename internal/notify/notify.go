// Package notify delivers verification and password reset codes.
package notify

import (
	"context"
	"time"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

// Message is the payload published for every delivered code.
type Message struct {
	Email     string       `json:"email"`
	Purpose   auth.Purpose `json:"purpose"`
	Code      string       `json:"code"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func messageFor(d auth.Delivery) Message {
	return Message{Email: d.Email, Purpose: d.Purpose, Code: d.Code, ExpiresAt: d.ExpiresAt.UTC()}
}

var _ auth.CodeSender = LogSender{}

// LogSender writes codes to the service log. Development only.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, d auth.Delivery) error {
	m := messageFor(d)
	obs.Info("verification code issued", map[string]any{
		"email":      m.Email,
		"purpose":    string(m.Purpose),
		"code":       m.Code,
		"expires_at": m.ExpiresAt.Format(time.RFC3339),
	})
	return nil
}
