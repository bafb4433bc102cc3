package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Sessions(ctx context.Context) SessionStore
	Verifications(ctx context.Context) VerificationStore
}

// UserStore manages accounts. Emails are stored lower-cased and are unique.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// SessionStore manages login sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}

// VerificationStore keeps one code per (email, purpose); Put replaces any previous one.
type VerificationStore interface {
	Put(ctx context.Context, v *Verification) error
	Find(ctx context.Context, email string, purpose Purpose) (*Verification, error)
	Delete(ctx context.Context, email string, purpose Purpose) error
}
