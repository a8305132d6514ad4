package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/prompt"
	"github.com/fakeyudi/tgdeck/internal/render"
	"github.com/fakeyudi/tgdeck/internal/tui"
)

var (
	searchTerm   string
	pageNumber   int
	exportFormat string
)

var dataCmd = withAccess(&cobra.Command{
	Use:   "data",
	Short: "Browse, search and export a channel's scraped messages",
}, gate.Protected)

// loadView fetches the channel's messages into a new view.
func loadView(cmd *cobra.Command, channelID string) (*dataset.View, error) {
	v := app.Dataset(channelID)
	if err := v.Fetch(cmd.Context()); err != nil {
		return nil, fail(v.Feedback(), err)
	}
	return v, nil
}

var dataShowCmd = &cobra.Command{
	Use:     "show <channel-id>",
	Short:   "Print one page of messages",
	Example: "  tgdeck data show --search launch --page 2 -- -1001234567890",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := render.New(outputFormat)
		if err != nil {
			return err
		}
		v, err := loadView(cmd, args[0])
		if err != nil {
			return err
		}
		defer v.Close()

		v.Search(searchTerm)
		v.Goto(pageNumber)
		data, err := r.Dataset(v.State())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var dataStatsCmd = &cobra.Command{
	Use:   "stats <channel-id>",
	Short: "Print message statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadView(cmd, args[0])
		if err != nil {
			return err
		}
		defer v.Close()

		st := v.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total messages:       %d\n", st.TotalMessages)
		fmt.Fprintf(out, "Messages with media:  %d\n", st.MessagesWithMedia)
		fmt.Fprintf(out, "Unique senders:       %d\n", st.UniqueSenders)
		return nil
	},
}

var dataExportCmd = &cobra.Command{
	Use:     "export <channel-id>",
	Short:   "Ask the backend to export a channel as CSV or JSON",
	Example: "  tgdeck data export --format json -- -1001234567890",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := exportFormat
		if f == "" {
			f = cfg.DefaultExportFormat
		}
		v := app.Dataset(args[0])
		defer v.Close()
		res, err := v.Export(cmd.Context(), dataset.Format(f))
		if err != nil {
			return fail(v.Feedback(), err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, v.Feedback().Success)
		if res.Path != "" {
			fmt.Fprintf(out, "Written on the backend to %s\n", res.Path)
		}
		return nil
	},
}

var dataBrowseCmd = &cobra.Command{
	Use:   "browse <channel-id>",
	Short: "Open the interactive message browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !prompt.Interactive(cmd.InOrStdin()) || !prompt.Interactive(os.Stdout) {
			return errors.New("browse needs a terminal, use 'tgdeck data show' instead")
		}
		v := app.Dataset(args[0])
		defer v.Close()
		if err := tui.Run(v); err != nil {
			return fail(apierr.Feedback{}, err)
		}
		return nil
	},
}

func init() {
	dataShowCmd.Flags().StringVarP(&searchTerm, "search", "s", "", "only messages containing this text")
	dataShowCmd.Flags().IntVar(&pageNumber, "page", 1, "page to print")
	dataShowCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown or json")
	dataExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "export format: csv or json (default from config)")

	dataCmd.AddCommand(dataShowCmd, dataStatsCmd, dataExportCmd, dataBrowseCmd)
	rootCmd.AddCommand(dataCmd)
}
