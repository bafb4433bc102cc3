package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrWeakPassword       = errors.New("auth: password too weak")
	ErrEmailNotVerified   = errors.New("auth: email not verified")
	ErrCodeInvalid        = errors.New("auth: verification code invalid")
	ErrCodeExpired        = errors.New("auth: verification code expired")
	ErrCooldown           = errors.New("auth: resend cooldown")
	ErrDelivery           = errors.New("auth: code delivery failed")
)

// ValidationError names the offending field of a rejected request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return "auth: " + e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// CooldownError is returned when a code was sent too recently.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("auth: resend available in %s", e.RetryAfter)
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// Seconds is the wait rounded up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

// DeliveryError wraps the sender failure; it matches both ErrDelivery and the cause.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "auth: deliver code: " + e.Err.Error() }

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }
