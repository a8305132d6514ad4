package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/render"
)

var dashboardCmd = withAccess(&cobra.Command{
	Use:   "dashboard",
	Short: "Show an overview of credentials, channels and scraped data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := render.New(outputFormat)
		if err != nil {
			return err
		}
		sum, fb, err := app.Dashboard().Load(cmd.Context())
		if err != nil {
			return fail(fb, err)
		}
		data, err := r.Dashboard(sum)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}, gate.Protected)

func init() {
	dashboardCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown or json")
	rootCmd.AddCommand(dashboardCmd)
}
