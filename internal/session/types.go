package session

import "strings"

// Role is the portal role attached to an identity.
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

// Staff reports whether r belongs on the admin portal.
func (r Role) Staff() bool { return r == RoleAdmin || r == RoleManager }

// Identity is the authenticated user mirrored from the server session.
type Identity struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	GivenName      string `json:"givenName,omitempty"`
	MiddleName     string `json:"middleName,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	PassportNumber string `json:"passportNumber,omitempty"`
}

// DisplayName prefers the server-provided name and falls back to the email.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	full := strings.TrimSpace(strings.Join([]string{i.GivenName, i.Surname}, " "))
	if full != "" {
		return full
	}
	return i.Email
}

// PassportAnswer is the yes/no answer to "do you hold a passport".
type PassportAnswer string

const (
	PassportYes PassportAnswer = "yes"
	PassportNo  PassportAnswer = "no"
)

// Draft is the registration form as collected by the wizard and posted to /auth/register.
type Draft struct {
	Surname         string         `json:"surname"`
	GivenName       string         `json:"givenName"`
	MiddleName      string         `json:"middleName"`
	HasPassport     PassportAnswer `json:"hasPassport"`
	PassportNumber  string         `json:"passportNumber"`
	Nationality     string         `json:"nationality"`
	Email           string         `json:"email"`
	Password        string         `json:"password"`
	ConfirmPassword string         `json:"confirmPassword"`
}

// ProfileUpdate is a partial profile; nil fields are left untouched by the server.
type ProfileUpdate struct {
	Name           *string `json:"name,omitempty"`
	Surname        *string `json:"surname,omitempty"`
	GivenName      *string `json:"givenName,omitempty"`
	MiddleName     *string `json:"middleName,omitempty"`
	Nationality    *string `json:"nationality,omitempty"`
	PassportNumber *string `json:"passportNumber,omitempty"`
}

// Empty reports whether the update carries no fields.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Surname == nil && p.GivenName == nil &&
		p.MiddleName == nil && p.Nationality == nil && p.PassportNumber == nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// Ack is the acknowledgement body returned by code and password endpoints.
type Ack struct {
	Message string `json:"message,omitempty"`
}
