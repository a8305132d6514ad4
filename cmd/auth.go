package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/prompt"
	"github.com/fakeyudi/tgdeck/internal/session"
)

var (
	authEmail    string
	authPassword string
	authName     string
	authIDToken  string
	authReset    string
)

func newPrompter(cmd *cobra.Command) *prompt.Prompter {
	return prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
}

// askMissing prompts for an empty email and password.
func askMissing(cmd *cobra.Command, email, password *string) error {
	p := newPrompter(cmd)
	var err error
	if *email == "" {
		if *email, err = p.Ask("Email", ""); err != nil {
			return errors.New("email and password are required")
		}
	}
	if *password == "" {
		if *password, err = p.Secret("Password"); err != nil {
			return errors.New("email and password are required")
		}
	}
	if *email == "" || *password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// reportLogin prints the outcome of a successful login.
func reportLogin(cmd *cobra.Command, res session.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	snap := app.session.Snapshot()
	if snap.Authenticated && snap.User != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", snap.User.Email)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged in. Your profile could not be loaded yet; run 'tgdeck status' to retry.")
	return nil
}

var loginCmd = withAccess(&cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := askMissing(cmd, &authEmail, &authPassword); err != nil {
			return err
		}
		return reportLogin(cmd, app.session.Login(cmd.Context(), authEmail, authPassword))
	},
}, gate.GuestOnly)

var googleLoginCmd = withAccess(&cobra.Command{
	Use:   "google-login",
	Short: "Sign in with a Google identity token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authIDToken == "" {
			return errors.New("--id-token is required")
		}
		return reportLogin(cmd, app.session.LoginWithGoogle(cmd.Context(), authIDToken))
	},
}, gate.GuestOnly)

var logoutCmd = withAccess(&cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app.session.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}, gate.Public)

var registerCmd = withAccess(&cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := askMissing(cmd, &authEmail, &authPassword); err != nil {
			return err
		}
		res := app.session.Register(cmd.Context(), authEmail, authPassword, authName)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. Run 'tgdeck login' to sign in.")
		return nil
	},
}, gate.GuestOnly)

var resetPasswordCmd = withAccess(&cobra.Command{
	Use:   "reset-password",
	Short: "Request a password reset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authEmail == "" {
			e, err := newPrompter(cmd).Ask("Email", "")
			if err != nil || e == "" {
				return errors.New("email is required")
			}
			authEmail = e
		}
		res := app.session.ResetPassword(cmd.Context(), authEmail)
		if !res.Success {
			return errors.New(res.Message)
		}
		if res.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Password reset requested.")
		}
		if tok, ok := res.Data.(string); ok && tok != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Reset token: %s\n", tok)
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'tgdeck set-password --token <token>' to choose a new password.")
		}
		return nil
	},
}, gate.Public)

var setPasswordCmd = withAccess(&cobra.Command{
	Use:   "set-password",
	Short: "Choose a new password with a reset token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authReset == "" {
			return errors.New("--token is required")
		}
		if authPassword == "" {
			p, err := newPrompter(cmd).Secret("New password")
			if err != nil || p == "" {
				return errors.New("a new password is required")
			}
			authPassword = p
		}
		res := app.session.SetNewPassword(cmd.Context(), authReset, authPassword)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Run 'tgdeck login' to sign in.")
		return nil
	},
}, gate.Public)

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "account password (prompted when omitted)")
	}
	registerCmd.Flags().StringVarP(&authName, "name", "n", "", "full name")
	googleLoginCmd.Flags().StringVar(&authIDToken, "id-token", "", "Google identity token")
	resetPasswordCmd.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
	setPasswordCmd.Flags().StringVar(&authReset, "token", "", "reset token from reset-password")
	setPasswordCmd.Flags().StringVarP(&authPassword, "password", "p", "", "new password (prompted when omitted)")

	rootCmd.AddCommand(loginCmd, googleLoginCmd, logoutCmd, registerCmd, resetPasswordCmd, setPasswordCmd)
}
