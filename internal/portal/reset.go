package portal

import (
	"context"
	"errors"
	"strings"
	"sync"

	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
	"scholarportal.org/internal/wizard"
)

// ErrResetNotRequested is returned by Complete before a reset code was requested.
var ErrResetNotRequested = errors.New("portal: reset code not requested")

// Resetter is the part of the session store the reset flow needs.
type Resetter interface {
	ForgotPassword(ctx context.Context, email string) (session.Ack, error)
	ResetPassword(ctx context.Context, email, code, password string) (session.Ack, error)
}

// PasswordReset is the two-step forgot/reset flow.
type PasswordReset struct {
	auth   Resetter
	toasts toast.Notifier

	mu        sync.Mutex
	email     string
	requested bool
	done      bool
	busy      bool
}

// NewPasswordReset returns a reset flow that reports its outcome through toasts.
func NewPasswordReset(auth Resetter, toasts toast.Notifier) *PasswordReset {
	return &PasswordReset{auth: auth, toasts: toasts}
}

// Requested reports whether a reset code has been sent.
func (r *PasswordReset) Requested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requested
}

// Done reports whether the password was reset.
func (r *PasswordReset) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *PasswordReset) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return wizard.ErrBusy
	}
	r.busy = true
	return nil
}

func (r *PasswordReset) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

// Request asks the server to send a reset code to email.
func (r *PasswordReset) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		const msg = "Please enter a valid email address"
		r.toasts.Add(toast.KindError, msg)
		return &wizard.ValidationError{Field: "email", Message: msg}
	}
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	ack, err := r.auth.ForgotPassword(ctx, email)
	if err != nil {
		r.toasts.Add(toast.KindError, session.Message(err, "Failed to send reset code"))
		return err
	}
	r.mu.Lock()
	r.email = email
	r.requested = true
	r.mu.Unlock()

	msg := ack.Message
	if msg == "" {
		msg = "If an account exists for " + email + ", a reset code has been sent"
	}
	r.toasts.Add(toast.KindInfo, msg)
	return nil
}

// Complete sets a new password using the emailed code.
func (r *PasswordReset) Complete(ctx context.Context, code, password, confirm string) error {
	r.mu.Lock()
	email, requested := r.email, r.requested
	r.mu.Unlock()
	if !requested {
		return ErrResetNotRequested
	}
	code = strings.TrimSpace(code)
	if code == "" {
		const msg = "Please enter the reset code"
		r.toasts.Add(toast.KindError, msg)
		return &wizard.ValidationError{Field: "code", Message: msg}
	}
	if err := wizard.ValidatePassword(wizard.StepPassword, password, confirm); err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			r.toasts.Add(toast.KindError, verr.Message)
		}
		return err
	}
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	if _, err := r.auth.ResetPassword(ctx, email, code, password); err != nil {
		r.toasts.Add(toast.KindError, session.Message(err, "Failed to reset password"))
		return err
	}
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.toasts.Add(toast.KindSuccess, "Password updated. Please log in with your new password.")
	return nil
}
