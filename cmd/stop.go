package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var continuousStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop continuous scraping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := app.Toggle()
		if err := t.Stop(cmd.Context()); err != nil {
			return fail(t.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Feedback().Success)
		return nil
	},
}

func init() {
	continuousCmd.AddCommand(continuousStopCmd)
}
