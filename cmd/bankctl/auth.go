package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"digitalbank-console/core"
)

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := newPrompter(cmd).secret("Password", password)
			if err != nil {
				return err
			}
			if err := core.ValidateLogin(username, pw); err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				id, err := sess.Auth.Login(ctx, strings.TrimSpace(username), pw)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", id.Username, strings.Join(id.Roles, ", "))
				if !sess.Tokens.Available() {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: token store is disabled; the session will not persist")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				sess.Auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func registerCmd() *cobra.Command {
	var username, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			pw, err := p.secret("Password", password)
			if err != nil {
				return err
			}
			if confirm, err = p.secret("Confirm password", confirm); err != nil {
				return err
			}
			if err := core.ValidateSignup(username, pw, confirm); err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := sess.Auth.Register(ctx, strings.TrimSpace(username), pw, confirm); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Registration successful! Please log in.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func passwdCmd() *cobra.Command {
	var oldPassword, newPassword, confirm string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if oldPassword, err = p.secret("Current password", oldPassword); err != nil {
				return err
			}
			if newPassword, err = p.secret("New password", newPassword); err != nil {
				return err
			}
			if confirm, err = p.secret("Confirm new password", confirm); err != nil {
				return err
			}
			if err := core.ValidatePasswordChange(oldPassword, newPassword, confirm, false); err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := requireLogin(sess); err != nil {
					return err
				}
				if err := sess.Auth.ChangePassword(ctx, oldPassword, newPassword); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password changed successfully")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "New password confirmation")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the cached identity without contacting the back-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				id := sess.State.Current()
				if id == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id.Username, strings.Join(id.Roles, ","))
				return nil
			})
		},
	}
}

func profileCmd() *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Fetch the signed-in user's profile from the back-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				if err := requireLogin(sess); err != nil {
					return err
				}
				var (
					id  core.Identity
					err error
				)
				if sync {
					id, err = sess.Auth.Reconcile(ctx)
				} else {
					id, err = sess.Auth.Profile(ctx)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, id)
			})
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Also refresh the cached identity from the profile")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session and token store state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *core.Session) error {
				return printJSON(cmd, core.CollectSessionStatus(ctx, sess.Backend, sess.Tokens, sess.State, time.Now()))
			})
		},
	}
}
