package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/models"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Guest    bool
	Provider string
	IDToken  string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a guest or with a Google ID token",
		Long: `Sign in and remember the session for later commands.

Example:
  garage login --guest
  garage login --provider google.com --id-token eyJhbGciOi...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Guest == (opts.IDToken != "") {
				return NewExitError(ExitCommandError, "use exactly one of --guest or --id-token")
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				var s *models.Session
				var err error
				if opts.Guest {
					s, err = a.Sessions.SignInAnonymous(ctx)
				} else {
					s, err = a.Sessions.SignInFederated(ctx, opts.Provider, opts.IDToken)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "sign-in failed", err)
				}
				return out.Success(s, func(w io.Writer) {
					fmt.Fprintf(w, "Signed in as %s\n", describeSession(s))
				})
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Guest, "guest", false, "sign in anonymously")
	cmd.Flags().StringVar(&opts.Provider, "provider", models.ProviderGoogle, "identity provider of --id-token")
	cmd.Flags().StringVar(&opts.IDToken, "id-token", "", "ID token issued by the provider")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := a.Sessions.SignOut(ctx); err != nil {
					return WrapExitError(ExitFailure, "sign-out failed", err)
				}
				return out.Success(nil, func(w io.Writer) {
					fmt.Fprintln(w, "Signed out")
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s := a.Sessions.Current()
				data := map[string]interface{}{"status": a.Sessions.Status(), "session": s}
				return out.Success(data, func(w io.Writer) {
					if s == nil {
						fmt.Fprintln(w, "Not signed in")
						return
					}
					fmt.Fprintf(w, "Signed in as %s\n", describeSession(s))
				})
			})
		},
	}
}

func describeSession(s *models.Session) string {
	switch {
	case s.Anonymous:
		return fmt.Sprintf("guest (%s)", s.UID)
	case s.Email != "":
		return fmt.Sprintf("%s (%s)", s.Email, s.UID)
	}
	return s.UID
}
