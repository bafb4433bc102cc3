package wizard

import (
	"net/mail"
	"strings"

	"scholarportal.org/internal/session"
)

// MinPasswordLength is the shortest password accepted locally.
const MinPasswordLength = 8

// PersonalInfo is the step-1 form.
type PersonalInfo struct {
	Surname        string
	GivenName      string
	MiddleName     string
	HasPassport    session.PassportAnswer
	PassportNumber string
	Nationality    string
}

func (p PersonalInfo) normalized() PersonalInfo {
	p.Surname = strings.TrimSpace(p.Surname)
	p.GivenName = strings.TrimSpace(p.GivenName)
	p.MiddleName = strings.TrimSpace(p.MiddleName)
	p.PassportNumber = strings.TrimSpace(p.PassportNumber)
	p.Nationality = strings.TrimSpace(p.Nationality)
	if p.HasPassport != session.PassportYes {
		p.HasPassport = session.PassportNo
	}
	return p
}

func validateStep1(p PersonalInfo) error {
	switch {
	case p.Surname == "":
		return validation(StepPersonalInfo, "surname", "Surname is required")
	case p.GivenName == "":
		return validation(StepPersonalInfo, "givenName", "Given name is required")
	case p.Nationality == "":
		return validation(StepPersonalInfo, "nationality", "Nationality is required")
	case p.HasPassport == session.PassportYes && p.PassportNumber == "":
		return validation(StepPersonalInfo, "passportNumber", "Passport number is required")
	}
	return nil
}

// ValidatePassword applies the local password guard shared by registration and reset.
func ValidatePassword(step Step, password, confirm string) error {
	if password != confirm {
		return validation(step, "confirmPassword", "Passwords do not match")
	}
	if len(password) < MinPasswordLength {
		return validation(step, "password", "Password must be at least 8 characters")
	}
	return nil
}

func validateEmail(email string) error {
	// a bare address only; "Name <addr>" forms are rejected
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validation(StepVerification, "email", "Please enter a valid email address")
	}
	return nil
}
