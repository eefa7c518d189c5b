package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// readSecret returns flagValue or, when empty, the first line of in.
func readSecret(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username-or-email>",
		Short: "Sign in and save the token pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			if err := c.app.session.Login(cmd.Context(), args[0], pw); err != nil {
				return err
			}
			return c.print(c.app.session.Snapshot())
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

func (c *cli) signupCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup <name> <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			authenticated, err := c.app.session.Signup(cmd.Context(), args[0], args[1], pw)
			if err != nil {
				return err
			}
			if !authenticated {
				if err := c.app.session.Login(cmd.Context(), args[0], pw); err != nil {
					return fmt.Errorf("account created but sign in failed: %w", err)
				}
			}
			return c.print(c.app.session.Snapshot())
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c.app.session.Logout()
			return c.print(c.app.session.Snapshot())
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state and signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.print(c.app.session.Snapshot())
		},
	}
}

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.session.Refresh(cmd.Context()); err != nil {
				return err
			}
			return c.print(c.app.session.Snapshot())
		},
	}
}

func (c *cli) deleteAccountCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to delete the account without --yes")
			}
			if err := c.app.session.DeleteAccount(cmd.Context()); err != nil {
				return err
			}
			return c.print(c.app.session.Snapshot())
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the deletion")
	return cmd
}

func (c *cli) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request or confirm a password reset",
	}

	request := &cobra.Command{
		Use:   "request <email>",
		Short: "Email a reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.app.account.RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(map[string]string{"message": msg})
		},
	}

	var password string
	confirm := &cobra.Command{
		Use:   "confirm <uidb64> <token>",
		Short: "Set a new password from a reset link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "New password: ")
			if err != nil {
				return err
			}
			msg, err := c.app.account.ConfirmPasswordReset(cmd.Context(), args[0], args[1], pw)
			if err != nil {
				return err
			}
			return c.print(map[string]string{"message": msg})
		},
	}
	confirm.Flags().StringVarP(&password, "password", "p", "", "new password (read from stdin when omitted)")

	cmd.AddCommand(request, confirm)
	return cmd
}
