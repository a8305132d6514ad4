package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/config"
	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/logging"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// app holds the wired components for the running command.
var app *App

var (
	flagBackend  string
	flagLogLevel string
)

// accessKey is the command annotation naming the gate a command sits behind.
const accessKey = "tgdeck/access"

// errSessionEnded is reported when the backend rejected the session mid-command.
var errSessionEnded = errors.New("session expired or revoked, run 'tgdeck login' to sign in again")

var rootCmd = &cobra.Command{
	Use:          "tgdeck",
	Short:        "Control panel for a Telegram channel scraping service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load and merge config files.
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagBackend != "" {
			loaded.BackendURL = flagBackend
		}
		if flagLogLevel != "" {
			loaded.LogLevel = flagLogLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logger, err := logging.NewWriter(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		app = a

		return admit(cmd.Context(), cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// admit hydrates the session and applies the command's gate.
func admit(ctx context.Context, cmd *cobra.Command) error {
	access := accessOf(cmd)
	if access == gate.Public {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	snap := app.session.Hydrate(ctx)

	switch gate.Admit(access, snap) {
	case gate.Allow:
		return nil
	case gate.Loading:
		return errors.New("session is still being restored, try again")
	case gate.RedirectLogin:
		return errors.New("not logged in, run 'tgdeck login' first")
	case gate.RedirectDashboard:
		who := "an existing account"
		if snap.User != nil {
			who = snap.User.Email
		}
		return fmt.Errorf("already logged in as %s, run 'tgdeck logout' first", who)
	}
	return nil
}

// accessOf walks up from cmd to the nearest access annotation. Commands
// without one are protected, except cobra's own help and completion.
func accessOf(cmd *cobra.Command) gate.Access {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return gate.Public
		}
		switch c.Annotations[accessKey] {
		case gate.Public.String():
			return gate.Public
		case gate.GuestOnly.String():
			return gate.GuestOnly
		case gate.Protected.String():
			return gate.Protected
		}
	}
	return gate.Protected
}

// withAccess annotates c with its gate.
func withAccess(c *cobra.Command, a gate.Access) *cobra.Command {
	if c.Annotations == nil {
		c.Annotations = map[string]string{}
	}
	c.Annotations[accessKey] = a.String()
	return c
}

func closeApp() error {
	if app == nil {
		return nil
	}
	err := app.Close()
	app = nil
	return err
}

// fail turns a component failure into the command's error: the session
// message on an AuthFailure, otherwise the scoped message when one was set.
func fail(fb apierr.Feedback, err error) error {
	if apierr.Is(err, apierr.KindAuth) {
		return errSessionEnded
	}
	if fb.Error != "" {
		return errors.New(fb.Error)
	}
	return err
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails.
	if cerr := closeApp(); cerr != nil {
		fmt.Fprintln(os.Stderr, "closing storage:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend base URL (overrides config and TGDECK_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}
