package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/credentials"
	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/prompt"
)

var (
	setupAPIID   string
	setupAPIHash string
	setupPhone   string
	showJSON     bool
)

var setupCmd = withAccess(&cobra.Command{
	Use:   "setup",
	Short: "Configure the Telegram API credentials used for scraping (re-run anytime to edit)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := app.Credentials()

		var creds credentials.Credentials
		var err error
		if setupAPIID != "" || setupAPIHash != "" || setupPhone != "" {
			// Non-interactive: all three must come from flags.
			creds, err = credentials.Validate(setupAPIID, setupAPIHash, setupPhone)
		} else {
			var existing *credentials.Credentials
			current, ok, fb, gerr := client.Get(cmd.Context())
			if gerr != nil {
				return fail(fb, gerr)
			}
			if ok {
				existing = &current
			}
			creds, err = prompt.RunSetup(newPrompter(cmd), existing)
		}
		if err != nil {
			if apierr.Is(err, apierr.KindValidation) {
				return errors.New(apierr.Detail(err, "invalid credentials"))
			}
			return fmt.Errorf("setup cancelled: %w", err)
		}

		fb, err := client.Save(cmd.Context(), creds)
		if err != nil {
			return fail(fb, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", fb.Success)
		fmt.Fprintln(cmd.OutOrStdout(), "  Run 'tgdeck channels available' to see the channels you can track.")
		return nil
	},
}, gate.Protected)

var credentialsCmd = withAccess(&cobra.Command{
	Use:   "credentials",
	Short: "Inspect the stored Telegram API credentials",
}, gate.Protected)

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored credentials with the API hash masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, ok, fb, err := app.Credentials().Get(cmd.Context())
		if err != nil {
			return fail(fb, err)
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintln(out, "Telegram credentials are not set. Run 'tgdeck setup'.")
			return nil
		}
		masked := credentials.Masked(creds)
		if showJSON {
			data, err := json.MarshalIndent(masked, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "API ID:    %d\n", masked.APIID)
		fmt.Fprintf(out, "API hash:  %s\n", masked.APIHash)
		fmt.Fprintf(out, "Phone:     %s\n", masked.Phone)
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupAPIID, "api-id", "", "Telegram API ID (skips the prompts)")
	setupCmd.Flags().StringVar(&setupAPIHash, "api-hash", "", "Telegram API hash")
	setupCmd.Flags().StringVar(&setupPhone, "phone", "", "phone number with country code")
	credentialsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print as JSON")

	credentialsCmd.AddCommand(credentialsShowCmd)
	rootCmd.AddCommand(setupCmd, credentialsCmd)
}
