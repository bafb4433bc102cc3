package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scholarportal.org/internal/portal"
	"scholarportal.org/internal/session"
	"scholarportal.org/internal/toast"
)

var errNotLoggedIn = errors.New("not logged in")

func sessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show who is logged in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := a.store.Identity()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func loginCmd(a *app) *cobra.Command {
	var (
		admin    bool
		password string
	)
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in through the student portal (or the admin portal with --admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := portal.Student
			if admin {
				p = portal.Admin
			}
			if password == "" {
				var err error
				if password, err = a.ask("Password"); err != nil {
					return err
				}
			}
			id, err := portal.NewLoginForm(p, a.store, a.notifier()).Submit(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Use the admin portal (staff accounts)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.store.Logout()
			a.notifier().Add(toast.KindInfo, "Logged out")
			return nil
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	var name, surname, givenName, middleName, nationality, passport string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile, or update it with flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.store.Identity(); !ok {
				return errNotLoggedIn
			}
			var upd session.ProfileUpdate
			set := func(flag string, v *string, dst **string) {
				if cmd.Flags().Changed(flag) {
					*dst = v
				}
			}
			set("name", &name, &upd.Name)
			set("surname", &surname, &upd.Surname)
			set("given-name", &givenName, &upd.GivenName)
			set("middle-name", &middleName, &upd.MiddleName)
			set("nationality", &nationality, &upd.Nationality)
			set("passport", &passport, &upd.PassportNumber)
			if upd.Empty() {
				id, _ := a.store.Identity()
				printIdentity(cmd.OutOrStdout(), id)
				return nil
			}
			id, err := a.store.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				a.notifier().Add(toast.KindError, session.Message(err, "Failed to update profile"))
				return err
			}
			a.notifier().Add(toast.KindSuccess, "Profile updated")
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&surname, "surname", "", "Surname")
	cmd.Flags().StringVar(&givenName, "given-name", "", "Given name")
	cmd.Flags().StringVar(&middleName, "middle-name", "", "Middle name")
	cmd.Flags().StringVar(&nationality, "nationality", "", "Nationality")
	cmd.Flags().StringVar(&passport, "passport", "", "Passport number")
	return cmd
}

func passwordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "forgot EMAIL",
			Short: "Email a password reset code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return portal.NewPasswordReset(a.store, a.notifier()).Request(cmd.Context(), args[0])
			},
		},
		resetCmd(a),
	)
	return cmd
}

func resetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset EMAIL",
		Short: "Set a new password with an emailed reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow := portal.NewPasswordReset(a.store, a.notifier())
			if err := flow.Request(cmd.Context(), args[0]); err != nil {
				return err
			}
			for !flow.Done() {
				code, err := a.ask("Reset code")
				if err != nil {
					return err
				}
				pw, err := a.ask("New password")
				if err != nil {
					return err
				}
				confirm, err := a.ask("Confirm password")
				if err != nil {
					return err
				}
				if err := flow.Complete(cmd.Context(), code, pw, confirm); err != nil && session.IsNetwork(err) {
					return err
				}
			}
			return nil
		},
	}
}
