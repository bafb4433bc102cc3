package session

import (
	"context"
	"net/http"
	"strings"
)

// SendVerificationCode asks the server to email a registration code. A new send
// supersedes any earlier code for the same address.
func (s *Store) SendVerificationCode(ctx context.Context, email string) (Ack, error) {
	return s.acknowledge(ctx, call{
		op:         "send_verification",
		method:     http.MethodPost,
		path:       "/auth/send-verification",
		body:       emailRequest{Email: strings.TrimSpace(email)},
		fallback:   "Failed to send verification code",
		withDetail: true,
	})
}

// VerifyCode confirms the code sent to email.
func (s *Store) VerifyCode(ctx context.Context, email, code string) (Ack, error) {
	return s.acknowledge(ctx, call{
		op:       "verify_code",
		method:   http.MethodPost,
		path:     "/auth/verify-code",
		body:     codeRequest{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code)},
		fallback: "Failed to verify code",
	})
}

// ForgotPassword asks the server to email a password reset code.
func (s *Store) ForgotPassword(ctx context.Context, email string) (Ack, error) {
	return s.acknowledge(ctx, call{
		op:         "forgot_password",
		method:     http.MethodPost,
		path:       "/auth/forgot-password",
		body:       emailRequest{Email: strings.TrimSpace(email)},
		fallback:   "Failed to send reset code",
		withDetail: true,
	})
}

// ResetPassword sets a new password using a reset code. The identity is not touched;
// the server revokes existing sessions of that account.
func (s *Store) ResetPassword(ctx context.Context, email, code, password string) (Ack, error) {
	return s.acknowledge(ctx, call{
		op:         "reset_password",
		method:     http.MethodPost,
		path:       "/auth/reset-password",
		body:       resetRequest{Email: strings.TrimSpace(email), Code: strings.TrimSpace(code), Password: password},
		fallback:   "Failed to reset password",
		withDetail: true,
	})
}

func (s *Store) acknowledge(ctx context.Context, c call) (Ack, error) {
	if err := s.begin(); err != nil {
		return Ack{}, err
	}
	defer s.end()

	c.optionalBody = true
	var ack Ack
	if err := s.do(ctx, c, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}
