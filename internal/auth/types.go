package auth

import "time"

// Role is the portal role of a user account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCustomer:
		return true
	}
	return false
}

// User is a registered portal account.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           Role
	Name           string
	Surname        string
	GivenName      string
	MiddleName     string
	Nationality    string
	HasPassport    bool
	PassportNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session is a server-side login session referenced by the session cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && !s.Revoked && now.Before(s.ExpiresAt)
}

// Purpose distinguishes registration codes from password reset codes.
type Purpose string

const (
	PurposeRegister Purpose = "register"
	PurposeReset    Purpose = "reset"
)

// Verification is the single outstanding code for an (email, purpose) pair.
type Verification struct {
	Email      string
	Purpose    Purpose
	CodeHash   string
	Attempts   int
	SentAt     time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
}

// Registration is the account request posted by the registration wizard.
type Registration struct {
	Surname         string
	GivenName       string
	MiddleName      string
	HasPassport     bool
	PassportNumber  string
	Nationality     string
	Email           string
	Password        string
	ConfirmPassword string
}

// ProfileUpdate carries the profile fields to change; nil fields are left as they are.
type ProfileUpdate struct {
	Name           *string
	Surname        *string
	GivenName      *string
	MiddleName     *string
	Nationality    *string
	PassportNumber *string
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Surname == nil && p.GivenName == nil &&
		p.MiddleName == nil && p.Nationality == nil && p.PassportNumber == nil
}

// Apply writes the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Name, p.Name)
	set(&u.Surname, p.Surname)
	set(&u.GivenName, p.GivenName)
	set(&u.MiddleName, p.MiddleName)
	set(&u.Nationality, p.Nationality)
	set(&u.PassportNumber, p.PassportNumber)
	if p.PassportNumber != nil {
		u.HasPassport = *p.PassportNumber != ""
	}
}
