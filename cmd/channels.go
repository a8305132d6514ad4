package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/prompt"
	"github.com/fakeyudi/tgdeck/internal/registry"
	"github.com/fakeyudi/tgdeck/internal/render"
)

var (
	channelCursor int64
	assumeYes     bool
	outputFormat  string
)

var channelsCmd = withAccess(&cobra.Command{
	Use:     "channels",
	Aliases: []string{"ch"},
	Short:   "Manage the channels tracked for scraping",
}, gate.Protected)

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked channels and their last scraped message id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := render.New(outputFormat)
		if err != nil {
			return err
		}
		reg := app.Registry()
		ch, err := reg.List(cmd.Context())
		if err != nil {
			return fail(reg.Feedback(), err)
		}
		data, err := r.Channels(ch)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// Channel ids are negative, so examples put them after "--" to stop them
// being read as flags.
var channelsAddCmd = &cobra.Command{
	Use:     "add <channel-id>",
	Short:   "Start tracking a channel",
	Example: "  tgdeck channels add -- -1001234567890\n  tgdeck channels add --cursor 500 -- -1001234567890",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := app.Registry()
		if err := reg.Add(cmd.Context(), args[0], channelCursor); err != nil {
			return fail(reg.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reg.Feedback().Success)
		return nil
	},
}

var channelsRemoveCmd = &cobra.Command{
	Use:     "rm <channel-id>",
	Aliases: []string{"remove"},
	Short:   "Stop tracking a channel",
	Example: "  tgdeck channels rm -- -1001234567890",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var confirm registry.Confirmer = newPrompter(cmd)
		if assumeYes {
			confirm = prompt.Always{}
		}
		reg := app.Registry()
		err := reg.Remove(cmd.Context(), args[0], confirm)
		if errors.Is(err, registry.ErrDeclined) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err != nil {
			return fail(reg.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reg.Feedback().Success)
		return nil
	},
}

var channelsAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List channels visible to your Telegram account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := app.Registry()
		avail, err := reg.FetchAvailable(cmd.Context())
		if err != nil {
			return fail(reg.Feedback(), err)
		}
		out := cmd.OutOrStdout()
		if len(avail) == 0 {
			fmt.Fprintln(out, "No channels available.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE")
		for _, c := range avail {
			fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Title)
		}
		return tw.Flush()
	},
}

var channelsScrapeCmd = &cobra.Command{
	Use:     "scrape <channel-id>",
	Short:   "Trigger a one-shot scrape of a tracked channel",
	Example: "  tgdeck channels scrape -- -1001234567890",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := app.Registry()
		if err := reg.TriggerScrape(cmd.Context(), args[0]); err != nil {
			return fail(reg.Feedback(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reg.Feedback().Success)
		return nil
	},
}

func init() {
	channelsListCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown or json")
	channelsAddCmd.Flags().Int64Var(&channelCursor, "cursor", 0, "last message id already processed")
	channelsRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	channelsCmd.AddCommand(channelsListCmd, channelsAddCmd, channelsRemoveCmd, channelsAvailableCmd, channelsScrapeCmd)
	rootCmd.AddCommand(channelsCmd)
}
