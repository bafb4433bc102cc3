package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongStep is returned when an operation is attempted outside its step.
	ErrWrongStep = errors.New("wizard: operation not allowed in current step")
	// ErrBusy is returned when the same kind of call is already in flight.
	ErrBusy = errors.New("wizard: operation already in progress")
	// ErrResendCooldown is returned while the resend countdown is running.
	ErrResendCooldown = errors.New("wizard: resend not available yet")
)

// ValidationError is a client-local failure that blocks a transition.
type ValidationError struct {
	Step    Step
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validation(step Step, field, msg string) *ValidationError {
	return &ValidationError{Step: step, Field: field, Message: msg}
}

func wrongStep(op string, step Step) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongStep, op, step)
}
