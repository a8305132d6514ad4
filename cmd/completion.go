package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/shell"
)

var installCompletionCmd = withAccess(&cobra.Command{
	Use:       "install-completion <bash|zsh|fish>",
	Short:     "Write the shell completion script and show how to load it",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: shell.Supported,
	RunE: func(cmd *cobra.Command, args []string) error {
		var script bytes.Buffer
		var err error
		switch args[0] {
		case "bash":
			err = rootCmd.GenBashCompletionV2(&script, true)
		case "zsh":
			err = rootCmd.GenZshCompletion(&script)
		case "fish":
			err = rootCmd.GenFishCompletion(&script, true)
		}
		if err != nil {
			return fmt.Errorf("generating completion: %w", err)
		}
		_, err = shell.Install(args[0], script.Bytes(), cmd.OutOrStdout())
		return err
	},
}, gate.Public)

func init() {
	rootCmd.AddCommand(installCompletionCmd)
}
