package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/toggle"
)

var statusCmd = withAccess(&cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		snap := app.session.Hydrate(cmd.Context())

		fmt.Fprintf(out, "Backend: %s\n", cfg.BackendURL)
		fmt.Fprintf(out, "Session: %s\n", snap.State)
		if !snap.Authenticated {
			fmt.Fprintln(out, "Not logged in. Run 'tgdeck login' to sign in.")
			return nil
		}
		if snap.User != nil {
			name := snap.User.FullName
			if name == "" {
				name = snap.User.Email
			}
			fmt.Fprintf(out, "User: %s <%s>\n", name, snap.User.Email)
		}
		if !snap.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "Token expires: %s (in %s)\n",
				snap.ExpiresAt.Local().Format(time.RFC3339),
				time.Until(snap.ExpiresAt).Round(time.Minute))
		}

		state := app.Toggle().State()
		fmt.Fprintf(out, "Continuous scraping: %s (last action)\n", state)
		if state == toggle.Running {
			fmt.Fprintln(out, "Run 'tgdeck continuous status --resync' to confirm with the backend.")
		}
		return nil
	},
}, gate.Public)

func init() {
	rootCmd.AddCommand(statusCmd)
}
