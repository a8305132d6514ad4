package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
)

var resyncToggle bool

var continuousCmd = withAccess(&cobra.Command{
	Use:   "continuous",
	Short: "Control continuous scraping of all tracked channels",
}, gate.Protected)

var continuousStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin continuous scraping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := app.Toggle()
		if err := t.Start(cmd.Context()); err != nil {
			return fail(t.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Feedback().Success)
		return nil
	},
}

var continuousStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether continuous scraping is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := app.Toggle()
		out := cmd.OutOrStdout()
		if !resyncToggle {
			fmt.Fprintf(out, "Continuous scraping: %s (from last action)\n", t.State())
			return nil
		}
		state, verified, err := t.Resync(cmd.Context())
		if err != nil {
			return fail(t.Feedback(), err)
		}
		if verified {
			fmt.Fprintf(out, "Continuous scraping: %s (confirmed by backend)\n", state)
		} else {
			fmt.Fprintf(out, "Continuous scraping: %s (backend cannot report status; from last action)\n", state)
		}
		return nil
	},
}

func init() {
	continuousStatusCmd.Flags().BoolVar(&resyncToggle, "resync", false, "ask the backend for its actual state")

	continuousCmd.AddCommand(continuousStartCmd, continuousStatusCmd)
	rootCmd.AddCommand(continuousCmd)
}
