package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lachlan2k/storefront-gate/internal/session"
)

func (a *app) loginCommand() *cobra.Command {
	var token, role, email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token issued by the storefront API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// fill what the caller left out from the token's own claims
			if info, err := session.Inspect(token); err == nil {
				if role == "" {
					role = info.Role
				}
				if email == "" {
					email = info.Email
				}
				if info.Expired(time.Now()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: token expired at %s\n", info.ExpiresAt.Format(time.RFC3339))
				}
			}

			if err := a.session.Login(cmd.Context(), token, role, email); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", displayOr(email, "unknown"), displayOr(role, "no role"))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Session token")
	cmd.Flags().StringVar(&role, "role", "", "Role name, taken from the token when omitted")
	cmd.Flags().StringVar(&email, "email", "", "Email, taken from the token when omitted")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := a.session.Snapshot()
			out := cmd.OutOrStdout()

			if !data.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			fmt.Fprintf(out, "email: %s\nrole:  %s\nadmin: %t\n", displayOr(data.Email, "-"), displayOr(data.Role, "-"), data.IsAdmin())
			if info, err := session.Inspect(data.Token); err == nil && !info.ExpiresAt.IsZero() {
				state := "valid"
				if info.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(out, "token: %s until %s\n", state, info.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func displayOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
