// Package portal applies the role policy that separates the student portal from the
// admin portal, and hosts the forgot/reset password flow.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

// Portal is the entry point a login is submitted through.
type Portal string

const (
	Student Portal = "student"
	Admin   Portal = "admin"
)

// Accepts reports whether role may stay signed in through p.
func (p Portal) Accepts(role session.Role) bool {
	switch p {
	case Student:
		return role == session.RoleCustomer
	case Admin:
		return role.Staff()
	}
	return false
}

// Redirect is the message shown to a role that used the wrong portal.
func (p Portal) Redirect() string {
	if p == Admin {
		return "Use Student Portal"
	}
	return "Use Admin Portal"
}

// ErrWrongPortal marks a login that succeeded for a role the portal does not serve.
var ErrWrongPortal = errors.New("portal: role not allowed on this portal")

// WrongPortalError is returned after the session has already been discarded.
type WrongPortalError struct {
	Portal Portal
	Role   session.Role
}

func (e *WrongPortalError) Error() string { return e.Portal.Redirect() }

func (e *WrongPortalError) Unwrap() error { return ErrWrongPortal }

// Authenticator is the part of the session store a login form needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (session.Identity, error)
	Logout()
}

// LoginForm submits credentials through one portal.
type LoginForm struct {
	portal Portal
	auth   Authenticator
	toasts toast.Notifier
}

// NewLoginForm builds a form for p. An unknown portal is treated as Student.
func NewLoginForm(p Portal, auth Authenticator, toasts toast.Notifier) *LoginForm {
	if p != Admin {
		p = Student
	}
	return &LoginForm{portal: p, auth: auth, toasts: toasts}
}

// Portal returns the portal the form submits through.
func (f *LoginForm) Portal() Portal { return f.portal }

// Submit logs in and enforces the portal's role policy. Every failure produces exactly
// one error toast and leaves no identity behind.
func (f *LoginForm) Submit(ctx context.Context, email, password string) (session.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		const msg = "Email and password are required"
		f.toasts.Add(toast.KindError, msg)
		return session.Identity{}, fmt.Errorf("portal: %s", strings.ToLower(msg))
	}
	id, err := f.auth.Login(ctx, email, password)
	if err != nil {
		f.toasts.Add(toast.KindError, session.Message(err, "Failed to login"))
		return session.Identity{}, err
	}
	if !f.portal.Accepts(id.Role) {
		f.auth.Logout()
		werr := &WrongPortalError{Portal: f.portal, Role: id.Role}
		f.toasts.Add(toast.KindError, werr.Error())
		return session.Identity{}, werr
	}
	f.toasts.Add(toast.KindSuccess, "Welcome back")
	return id, nil
}
