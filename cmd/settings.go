package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/registry"
)

var scrapeMedia bool

var settingsCmd = withAccess(&cobra.Command{
	Use:   "settings",
	Short: "View or change scrape settings",
}, gate.Protected)

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show scrape settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := app.Registry()
		s, err := reg.GetSettings(cmd.Context())
		if err != nil {
			return fail(reg.Feedback(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scrape media: %t\n", s.ScrapeMedia)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change scrape settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("media") {
			return errors.New("nothing to change, pass --media=true or --media=false")
		}
		reg := app.Registry()
		if err := reg.SetSettings(cmd.Context(), registry.Settings{ScrapeMedia: scrapeMedia}); err != nil {
			return fail(reg.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reg.Feedback().Success)
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().BoolVar(&scrapeMedia, "media", false, "download media along with messages")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
