package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"scholarportal.org/internal/ids"
	"scholarportal.org/internal/obs"
)

const (
	DefaultSessionTTL     = 7 * 24 * time.Hour
	DefaultCodeTTL        = 10 * time.Minute
	DefaultResendWindow   = 30 * time.Second
	DefaultVerifiedWindow = 30 * time.Minute
	MaxCodeAttempts       = 5
)

// Delivery is a code handed to a CodeSender.
type Delivery struct {
	Email     string
	Purpose   Purpose
	Code      string
	ExpiresAt time.Time
}

// CodeSender delivers verification and reset codes out of band.
type CodeSender interface {
	Send(ctx context.Context, d Delivery) error
}

// Authenticated is the result of a successful login or registration.
type Authenticated struct {
	User    *User
	Session *Session
	Token   string
}

// Service implements registration, login and session management.
type Service struct {
	store  Store
	now    func() time.Time
	secret string
	tokens *TokenSigner
	sender CodeSender
	code   func() (string, error)

	sessionTTL     time.Duration
	codeTTL        time.Duration
	resendWindow   time.Duration
	verifiedWindow time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSessionSecret sets the HS256 secret for session cookies. Required.
func WithSessionSecret(secret string) ServiceOption {
	return func(s *Service) error {
		s.secret = strings.TrimSpace(secret)
		return nil
	}
}

// WithSessionTTL configures session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithCodeTTL configures how long a verification code stays valid.
func WithCodeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.codeTTL = ttl
		}
		return nil
	}
}

// WithResendWindow configures the minimum gap between two sends for one email.
func WithResendWindow(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d >= 0 {
			s.resendWindow = d
		}
		return nil
	}
}

// WithCodeSender sets the delivery channel for codes.
func WithCodeSender(sender CodeSender) ServiceOption {
	return func(s *Service) error {
		if sender == nil {
			return errors.New("auth: code sender is nil")
		}
		s.sender = sender
		return nil
	}
}

// WithCodeGenerator overrides code generation (useful for tests).
func WithCodeGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.code = fn
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is nil")
	}
	svc := &Service{
		store:          store,
		now:            time.Now,
		code:           randomCode,
		sender:         discardSender{},
		sessionTTL:     DefaultSessionTTL,
		codeTTL:        DefaultCodeTTL,
		resendWindow:   DefaultResendWindow,
		verifiedWindow: DefaultVerifiedWindow,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	tokens, err := NewTokenSigner(svc.secret, svc.now)
	if err != nil {
		return nil, err
	}
	svc.tokens = tokens
	return svc, nil
}

// SessionTTL is the lifetime given to new sessions.
func (s *Service) SessionTTL() time.Duration { return s.sessionTTL }

// SendVerification issues a registration code for an email that has no account yet.
func (s *Service) SendVerification(ctx context.Context, email string) (time.Time, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := s.store.Users(ctx).FindByEmail(ctx, email); err == nil {
		return time.Time{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return time.Time{}, err
	}
	return s.issueCode(ctx, email, PurposeRegister)
}

func (s *Service) issueCode(ctx context.Context, email string, purpose Purpose) (time.Time, error) {
	codes := s.store.Verifications(ctx)
	now := s.now().UTC()
	prev, err := codes.Find(ctx, email, purpose)
	switch {
	case err == nil:
		if wait := prev.SentAt.Add(s.resendWindow).Sub(now); wait > 0 {
			return time.Time{}, &CooldownError{RetryAfter: wait}
		}
	case !errors.Is(err, ErrNotFound):
		return time.Time{}, err
	}

	code, err := s.code()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := hashCode(code)
	if err != nil {
		return time.Time{}, fmt.Errorf("hash code: %w", err)
	}
	v := &Verification{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		SentAt:    now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := codes.Put(ctx, v); err != nil {
		return time.Time{}, err
	}
	if err := s.sender.Send(ctx, Delivery{Email: email, Purpose: purpose, Code: code, ExpiresAt: v.ExpiresAt}); err != nil {
		// an undelivered code must not hold the resend window
		_ = codes.Delete(ctx, email, purpose)
		return time.Time{}, &DeliveryError{Err: err}
	}
	return v.ExpiresAt, nil
}

// VerifyCode marks the outstanding registration code for email as verified.
func (s *Service) VerifyCode(ctx context.Context, email, code string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	_, err = s.checkCode(ctx, email, PurposeRegister, code)
	return err
}

func (s *Service) checkCode(ctx context.Context, email string, purpose Purpose, code string) (*Verification, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "Verification code is required")
	}
	codes := s.store.Verifications(ctx)
	v, err := codes.Find(ctx, email, purpose)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !now.Before(v.ExpiresAt) || v.Attempts >= MaxCodeAttempts {
		_ = codes.Delete(ctx, email, purpose)
		return nil, ErrCodeExpired
	}
	if !checkCode(v.CodeHash, code) {
		v.Attempts++
		if err := codes.Put(ctx, v); err != nil {
			return nil, err
		}
		return nil, ErrCodeInvalid
	}
	v.VerifiedAt = &now
	if err := codes.Put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register creates a customer account for a verified email and opens a session.
func (s *Service) Register(ctx context.Context, reg Registration) (Authenticated, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return Authenticated{}, err
	}
	reg = trimRegistration(reg)
	if err := validateRegistration(reg); err != nil {
		return Authenticated{}, err
	}

	codes := s.store.Verifications(ctx)
	v, err := codes.Find(ctx, email, PurposeRegister)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Authenticated{}, ErrEmailNotVerified
		}
		return Authenticated{}, err
	}
	if v.VerifiedAt == nil || s.now().UTC().After(v.VerifiedAt.Add(s.verifiedWindow)) {
		return Authenticated{}, ErrEmailNotVerified
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return Authenticated{}, err
	}
	now := s.now().UTC()
	user := &User{
		ID:             ids.NewAt(now),
		Email:          email,
		PasswordHash:   hash,
		Role:           RoleCustomer,
		Name:           strings.TrimSpace(reg.GivenName + " " + reg.Surname),
		Surname:        reg.Surname,
		GivenName:      reg.GivenName,
		MiddleName:     reg.MiddleName,
		Nationality:    reg.Nationality,
		HasPassport:    reg.HasPassport,
		PassportNumber: reg.PassportNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return Authenticated{}, err
	}
	if err := codes.Delete(ctx, email, PurposeRegister); err != nil {
		obs.Warn("verification cleanup failed", map[string]any{"email": email, "error": err})
	}
	return s.openSession(ctx, user)
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Authenticated, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Authenticated{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Authenticated{}, ErrInvalidCredentials
		}
		return Authenticated{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Authenticated{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, user)
}

func (s *Service) openSession(ctx context.Context, user *User) (Authenticated, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:        ids.NewAt(now),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return Authenticated{}, err
	}
	token, err := s.tokens.Sign(sess, user.Role)
	if err != nil {
		return Authenticated{}, err
	}
	return Authenticated{User: user, Session: sess, Token: token}, nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	sess, err := s.store.Sessions(ctx).Find(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	if !sess.Active(s.now()) || sess.UserID != claims.Subject {
		return nil, nil, ErrUnauthorized
	}
	user, err := s.store.Users(ctx).Find(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	return user, sess, nil
}

// Logout revokes the session behind token. Unknown or invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.store.Sessions(ctx).MarkRevoked(ctx, claims.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	if upd.Empty() {
		return nil, invalid("profile", "No profile fields provided")
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	upd = ProfileUpdate{
		Name:           trim(upd.Name),
		Surname:        trim(upd.Surname),
		GivenName:      trim(upd.GivenName),
		MiddleName:     trim(upd.MiddleName),
		Nationality:    trim(upd.Nationality),
		PassportNumber: trim(upd.PassportNumber),
	}
	if upd.Surname != nil && *upd.Surname == "" {
		return nil, invalid("surname", "Surname is required")
	}
	if upd.GivenName != nil && *upd.GivenName == "" {
		return nil, invalid("givenName", "Given name is required")
	}
	return s.store.Users(ctx).UpdateProfile(ctx, userID, upd)
}

// ForgotPassword sends a reset code when an account exists. Unknown emails, the resend
// window and delivery failures are not reported to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.store.Users(ctx).FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.issueCode(ctx, email, PurposeReset); err != nil {
		var cooldown *CooldownError
		if errors.As(err, &cooldown) || errors.Is(err, ErrDelivery) {
			obs.Warn("reset code not sent", map[string]any{"email": email, "error": err})
			return nil
		}
		return err
	}
	return nil
}

// ResetPassword replaces the password using a reset code and revokes every session.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if _, err := s.checkCode(ctx, email, PurposeReset, code); err != nil {
		return err
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrCodeInvalid
		}
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	_ = s.store.Verifications(ctx).Delete(ctx, email, PurposeReset)
	return s.store.Sessions(ctx).MarkRevokedByUser(ctx, user.ID)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "A valid email address is required")
	}
	return email, nil
}

func trimRegistration(r Registration) Registration {
	r.Surname = strings.TrimSpace(r.Surname)
	r.GivenName = strings.TrimSpace(r.GivenName)
	r.MiddleName = strings.TrimSpace(r.MiddleName)
	r.PassportNumber = strings.TrimSpace(r.PassportNumber)
	r.Nationality = strings.TrimSpace(r.Nationality)
	if !r.HasPassport {
		r.PassportNumber = ""
	}
	return r
}

func validateRegistration(r Registration) error {
	switch {
	case r.Surname == "":
		return invalid("surname", "Surname is required")
	case r.GivenName == "":
		return invalid("givenName", "Given name is required")
	case r.Nationality == "":
		return invalid("nationality", "Nationality is required")
	case r.HasPassport && r.PassportNumber == "":
		return invalid("passportNumber", "Passport number is required")
	case r.Password != r.ConfirmPassword:
		return invalid("confirmPassword", "Passwords do not match")
	case len(r.Password) < MinPasswordLength:
		return ErrWeakPassword
	}
	return nil
}

type discardSender struct{}

func (discardSender) Send(context.Context, Delivery) error { return nil }
