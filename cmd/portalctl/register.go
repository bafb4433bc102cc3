package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scholarportal.org/internal/session"
	"scholarportal.org/internal/wizard"
)

func registerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create a student account (interactive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := wizard.New(a.store, a.notifier())
			if err := a.runWizard(cmd.Context(), w); err != nil {
				return err
			}
			id, _ := w.Registered()
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// runWizard walks the steps until registration succeeds or input ends. Typing "back"
// at a verification or password prompt returns to the previous step.
func (a *app) runWizard(ctx context.Context, w *wizard.Wizard) error {
	for {
		var err error
		switch w.Step() {
		case wizard.StepPersonalInfo:
			err = a.personalInfo(w)
		case wizard.StepVerification:
			err = a.verification(ctx, w)
		case wizard.StepPassword:
			err = a.password(ctx, w)
		case wizard.StepSuccess:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *app) personalInfo(w *wizard.Wizard) error {
	fmt.Fprintln(a.out, "Step 1 of 3: personal information")
	prev := w.Draft()
	var info wizard.PersonalInfo
	fields := []struct {
		label string
		old   string
		dst   *string
	}{
		{"Surname", prev.Surname, &info.Surname},
		{"Given name", prev.GivenName, &info.GivenName},
		{"Middle name (optional)", prev.MiddleName, &info.MiddleName},
	}
	for _, f := range fields {
		v, err := a.askDefault(f.label, f.old)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	answer, err := a.askDefault("Do you hold a passport? (yes/no)", string(prev.HasPassport))
	if err != nil {
		return err
	}
	info.HasPassport = session.PassportNo
	if strings.EqualFold(strings.TrimSpace(answer), "yes") || strings.EqualFold(strings.TrimSpace(answer), "y") {
		info.HasPassport = session.PassportYes
		if info.PassportNumber, err = a.askDefault("Passport number", prev.PassportNumber); err != nil {
			return err
		}
	}
	if info.Nationality, err = a.askDefault("Nationality", prev.Nationality); err != nil {
		return err
	}
	// a rejected form has already raised its toast; the loop asks again
	_, _ = w.SubmitPersonalInfo(info)
	return nil
}

func (a *app) verification(ctx context.Context, w *wizard.Wizard) error {
	fmt.Fprintln(a.out, "Step 2 of 3: verify your email")
	if w.EmailVerified() {
		// back from the password step: keep the address to continue, or enter another
		current := w.Draft().Email
		email, err := a.askDefault("Email (\"back\" to edit details)", current)
		if err != nil {
			return err
		}
		email = strings.TrimSpace(email)
		switch {
		case strings.EqualFold(email, "back"):
			_, err = w.Back()
			return err
		case strings.EqualFold(email, current):
			_, err = w.Resume()
			return err
		}
		if _, err := w.SendCode(ctx, email); err != nil {
			return a.softError(err, w)
		}
		return nil
	}
	if !w.CodeSent() {
		email, err := a.askDefault("Email", w.Draft().Email)
		if err != nil {
			return err
		}
		if strings.EqualFold(email, "back") {
			_, err = w.Back()
			return err
		}
		if _, err := w.SendCode(ctx, email); err != nil {
			return a.softError(err, w)
		}
	}
	code, err := a.ask("Verification code (blank to resend, \"email\" to change address, \"back\" to edit details)")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "back":
		_, err = w.Back()
		return err
	case "email":
		email, err := a.ask("Email")
		if err != nil {
			return err
		}
		if _, err := w.SendCode(ctx, email); err != nil {
			return a.softError(err, w)
		}
		return nil
	case "":
		if _, err := w.SendCode(ctx, w.Draft().Email); err != nil {
			return a.softError(err, w)
		}
		return nil
	}
	if _, err := w.VerifyCode(ctx, code); err != nil {
		fmt.Fprintln(a.errOut, "✗", w.VerifyError())
		if session.IsNetwork(err) {
			return err
		}
	}
	return nil
}

func (a *app) password(ctx context.Context, w *wizard.Wizard) error {
	fmt.Fprintln(a.out, "Step 3 of 3: choose a password")
	pw, err := a.ask("Password (\"back\" to change email)")
	if err != nil {
		return err
	}
	if pw == "back" {
		_, err = w.Back()
		return err
	}
	confirm, err := a.ask("Confirm password")
	if err != nil {
		return err
	}
	if _, err := w.SubmitPassword(ctx, pw, confirm); err != nil && session.IsNetwork(err) {
		return err
	}
	return nil
}

// softError keeps the wizard running for errors the user can act on.
func (a *app) softError(err error, w *wizard.Wizard) error {
	switch {
	case errors.Is(err, wizard.ErrResendCooldown):
		fmt.Fprintf(a.errOut, "Please wait %ds before requesting another code\n", int(w.ResendIn().Seconds()+0.999))
		return nil
	case session.IsNetwork(err):
		return err
	}
	return nil
}

// askDefault shows the previous answer and keeps it when the reply is blank.
func (a *app) askDefault(label, old string) (string, error) {
	if old != "" {
		label = fmt.Sprintf("%s [%s]", label, old)
	}
	v, err := a.ask(label)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return old, nil
	}
	return v, nil
}
