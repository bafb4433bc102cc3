// Package wizard implements the gated four-step registration flow:
// personal info, email verification, password, success.
package wizard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

// ResendCooldown is the wait between two verification code sends for one email.
const ResendCooldown = 30 * time.Second

// Registrar is the slice of the session store the wizard drives.
type Registrar interface {
	SendVerificationCode(ctx context.Context, email string) (session.Ack, error)
	VerifyCode(ctx context.Context, email, code string) (session.Ack, error)
	Register(ctx context.Context, draft session.Draft) (session.Identity, error)
}

// Wizard owns one registration draft. Transition methods return the resulting step;
// on failure the step is unchanged.
type Wizard struct {
	auth   Registrar
	toasts toast.Notifier
	now    func() time.Time

	mu            sync.Mutex
	step          Step
	draft         session.Draft
	codeSent      bool
	emailVerified bool
	resendAt      time.Time
	verifyErr     string
	busy          map[Op]bool
	registered    *session.Identity
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithClock overrides the time source used for the resend countdown.
func WithClock(fn func() time.Time) Option {
	return func(w *Wizard) {
		if fn != nil {
			w.now = fn
		}
	}
}

// New starts a wizard at StepPersonalInfo.
func New(auth Registrar, toasts toast.Notifier, opts ...Option) *Wizard {
	w := &Wizard{
		auth:   auth,
		toasts: toasts,
		now:    time.Now,
		step:   StepPersonalInfo,
		draft:  session.Draft{HasPassport: session.PassportNo},
		busy:   make(map[Op]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the draft without password fields.
func (w *Wizard) Draft() session.Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.draft
	d.Password = ""
	d.ConfirmPassword = ""
	return d
}

// CodeSent reports whether a code was sent to the current email.
func (w *Wizard) CodeSent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.codeSent
}

// EmailVerified reports whether the current email passed verification.
func (w *Wizard) EmailVerified() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.emailVerified
}

// VerifyError is the inline message left by the last failed verification.
func (w *Wizard) VerifyError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.verifyErr
}

// ResendIn is the remaining resend countdown; zero when a send is allowed.
func (w *Wizard) ResendIn() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resendInLocked()
}

func (w *Wizard) resendInLocked() time.Duration {
	if !w.codeSent {
		return 0
	}
	left := w.resendAt.Sub(w.now())
	if left < 0 {
		return 0
	}
	return left
}

// Busy reports whether a call of kind op is in flight.
func (w *Wizard) Busy(op Op) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy[op]
}

// Registered returns the identity created by a completed registration.
func (w *Wizard) Registered() (session.Identity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.registered == nil {
		return session.Identity{}, false
	}
	return *w.registered, true
}

// SubmitPersonalInfo validates step 1 and advances to verification.
func (w *Wizard) SubmitPersonalInfo(info PersonalInfo) (Step, error) {
	w.mu.Lock()
	if w.step != StepPersonalInfo {
		step := w.step
		w.mu.Unlock()
		return step, wrongStep("submit personal info", step)
	}
	info = info.normalized()
	if err := validateStep1(info); err != nil {
		w.mu.Unlock()
		w.fail(err)
		return StepPersonalInfo, err
	}
	w.draft.Surname = info.Surname
	w.draft.GivenName = info.GivenName
	w.draft.MiddleName = info.MiddleName
	w.draft.HasPassport = info.HasPassport
	w.draft.PassportNumber = info.PassportNumber
	if info.HasPassport != session.PassportYes {
		w.draft.PassportNumber = ""
	}
	w.draft.Nationality = info.Nationality
	w.step = StepVerification
	w.mu.Unlock()
	return StepVerification, nil
}

// SendCode requests a verification code for email. While the resend countdown runs,
// or while a send is in flight, it returns without contacting the server.
func (w *Wizard) SendCode(ctx context.Context, email string) (Step, error) {
	email = strings.TrimSpace(email)

	w.mu.Lock()
	if w.step != StepVerification {
		step := w.step
		w.mu.Unlock()
		return step, wrongStep("send code", step)
	}
	if w.busy[OpSendCode] {
		w.mu.Unlock()
		return StepVerification, ErrBusy
	}
	if err := validateEmail(email); err != nil {
		w.mu.Unlock()
		w.fail(err)
		return StepVerification, err
	}
	if !strings.EqualFold(email, w.draft.Email) {
		w.draft.Email = email
		w.codeSent = false
		w.emailVerified = false
		w.resendAt = time.Time{}
		w.verifyErr = ""
	}
	if w.resendInLocked() > 0 {
		w.mu.Unlock()
		return StepVerification, ErrResendCooldown
	}
	w.busy[OpSendCode] = true
	w.mu.Unlock()

	_, err := w.auth.SendVerificationCode(ctx, email)

	w.mu.Lock()
	w.busy[OpSendCode] = false
	if strings.EqualFold(email, w.draft.Email) {
		switch {
		case err == nil:
			// the server replaced its record, so an earlier verification no longer counts
			w.codeSent = true
			w.emailVerified = false
			w.resendAt = w.now().Add(ResendCooldown)
			w.verifyErr = ""
		case rejectedWith(err, http.StatusBadGateway):
			// failed delivery drops the stored code
			w.codeSent = false
			w.emailVerified = false
		}
	}
	step := w.step
	w.mu.Unlock()

	if err != nil {
		w.fail(err)
		return step, err
	}
	w.toasts.Add(toast.KindSuccess, "Verification code sent to "+email)
	return step, nil
}

// VerifyCode checks code against the current email and advances to the password step.
// A failure is kept as the inline VerifyError and does not advance.
func (w *Wizard) VerifyCode(ctx context.Context, code string) (Step, error) {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	if w.step != StepVerification {
		step := w.step
		w.mu.Unlock()
		return step, wrongStep("verify code", step)
	}
	if w.busy[OpVerify] {
		w.mu.Unlock()
		return StepVerification, ErrBusy
	}
	if !w.codeSent {
		err := validation(StepVerification, "code", "Please request a verification code first")
		w.verifyErr = err.Message
		w.mu.Unlock()
		return StepVerification, err
	}
	if code == "" {
		err := validation(StepVerification, "code", "Please enter the verification code")
		w.verifyErr = err.Message
		w.mu.Unlock()
		return StepVerification, err
	}
	email := w.draft.Email
	w.busy[OpVerify] = true
	w.verifyErr = ""
	w.mu.Unlock()

	_, err := w.auth.VerifyCode(ctx, email, code)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy[OpVerify] = false
	if err != nil {
		w.verifyErr = session.Message(err, "Failed to verify code")
		return w.step, err
	}
	if !strings.EqualFold(email, w.draft.Email) {
		// email changed while the call was in flight
		return w.step, nil
	}
	w.emailVerified = true
	if w.step == StepVerification {
		w.step = StepPassword
	}
	return w.step, nil
}

// Resume returns to the password step when the current email is already verified.
func (w *Wizard) Resume() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepVerification || !w.emailVerified {
		return w.step, wrongStep("resume", w.step)
	}
	w.step = StepPassword
	return w.step, nil
}

// SubmitPassword checks the password locally and, when it passes, registers the draft.
func (w *Wizard) SubmitPassword(ctx context.Context, password, confirm string) (Step, error) {
	w.mu.Lock()
	if w.step != StepPassword {
		step := w.step
		w.mu.Unlock()
		return step, wrongStep("submit password", step)
	}
	if w.busy[OpRegister] {
		w.mu.Unlock()
		return StepPassword, ErrBusy
	}
	if !w.emailVerified {
		w.mu.Unlock()
		return StepPassword, wrongStep("submit password without verified email", StepPassword)
	}
	if err := ValidatePassword(StepPassword, password, confirm); err != nil {
		w.mu.Unlock()
		w.fail(err)
		return StepPassword, err
	}
	draft := w.draft
	draft.Password = password
	draft.ConfirmPassword = confirm
	w.busy[OpRegister] = true
	w.mu.Unlock()

	id, err := w.auth.Register(ctx, draft)

	w.mu.Lock()
	w.busy[OpRegister] = false
	if err != nil {
		step := w.step
		w.mu.Unlock()
		w.fail(err)
		return step, err
	}
	w.registered = &id
	w.step = StepSuccess
	w.mu.Unlock()

	w.toasts.Add(toast.KindSuccess, "Registration complete! You can now log in.")
	return StepSuccess, nil
}

// Back moves from verification to personal info, or from password to verification,
// keeping everything entered so far.
func (w *Wizard) Back() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepVerification:
		w.step = StepPersonalInfo
	case StepPassword:
		w.step = StepVerification
	default:
		return w.step, wrongStep("back", w.step)
	}
	return w.step, nil
}

func (w *Wizard) fail(err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		w.toasts.Add(toast.KindError, verr.Message)
		return
	}
	w.toasts.Add(toast.KindError, session.Message(err, session.NetworkMessage))
}

func rejectedWith(err error, status int) bool {
	var aerr *session.AuthError
	return errors.As(err, &aerr) && aerr.Status == status
}
