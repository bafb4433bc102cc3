package session

import "errors"

var (
	// ErrNetwork marks requests that never produced a server answer.
	ErrNetwork = errors.New("session: request did not complete")
	// ErrRejected marks requests the server answered with a non-2xx status.
	ErrRejected = errors.New("session: rejected by server")
	// ErrClosed is returned once the store has been closed.
	ErrClosed = errors.New("session: store closed")
)

// NetworkMessage is shown to users when the API cannot be reached.
const NetworkMessage = "Unable to reach the server. Please check your connection and try again."

// AuthError carries a user-displayable message from a failed auth-related call.
type AuthError struct {
	Op      string
	Status  int // 0 when the request did not complete
	Message string
	Details string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is an AuthError for a request that did not complete.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// Message returns the display message of an AuthError, or fallback for any other error.
func Message(err error, fallback string) string {
	var aerr *AuthError
	if errors.As(err, &aerr) && aerr.Message != "" {
		return aerr.Message
	}
	return fallback
}
