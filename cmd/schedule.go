package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/registry"
	"github.com/fakeyudi/tgdeck/internal/scheduler"
	"github.com/fakeyudi/tgdeck/internal/session"
	"github.com/fakeyudi/tgdeck/internal/storage"
)

var (
	scheduleSpec   string
	scheduleRunNow bool
)

var scheduleCmd = withAccess(&cobra.Command{
	Use:   "schedule [channel-id...]",
	Short: "Trigger scrapes on a cron schedule until interrupted",
	Long: `Trigger one-shot scrapes on a cron schedule. With no channel ids every
tracked channel is scraped, re-read from the backend at each run.

The schedule stops when the session ends, either because the backend rejects
the token or because 'tgdeck logout' ran in another terminal.`,
	Example: "  tgdeck schedule --cron '@every 1h'\n  tgdeck schedule --cron '0 */6 * * *' -- -1001234567890",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := app.Registry()
		job := scrapeJob(reg, args, app.logger)

		s, err := scheduler.New(cfg.Timezone, app.logger)
		if err != nil {
			return err
		}
		if err := s.AddJob("scrape", scheduleSpec, job); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if scheduleRunNow {
			if err := s.RunNow(ctx, job); err != nil {
				if apierr.Is(err, apierr.KindAuth) {
					return errSessionEnded
				}
				fmt.Fprintf(out, "Initial run finished with errors: %v\n", err)
			}
		}

		ended := make(chan struct{})
		if fs, ok := app.kv.(*storage.FileStore); ok {
			go watchSession(ctx, fs, app.session, app.logger, ended)
		}

		s.Start()
		defer func() {
			<-s.Stop().Done()
		}()
		for _, j := range s.ListJobs() {
			fmt.Fprintf(out, "Scheduled %q (%s), next run %s\n", j.Name, j.Spec, j.NextRun.Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Schedule stopped.")
			return nil
		case <-s.Done():
			return errSessionEnded
		case <-ended:
			fmt.Fprintln(out, "Logged out elsewhere, schedule stopped.")
			return nil
		}
	},
}, gate.Protected)

// scrapeJob triggers ids, or every tracked channel when ids is empty.
func scrapeJob(reg *registry.Registry, ids []string, logger *zap.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		targets := ids
		if len(targets) == 0 {
			ch, err := reg.List(ctx)
			if err != nil {
				return err
			}
			targets = ch.IDs()
		}
		return scheduler.ScrapeJob(reg, targets, logger)(ctx)
	}
}

// watchSession closes ended once the stored session no longer authenticates.
func watchSession(ctx context.Context, fs *storage.FileStore, sess *session.Store, logger *zap.Logger, ended chan<- struct{}) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var once sync.Once
	err := fs.Watch(watchCtx, func() {
		if snap := sess.Resync(watchCtx); !snap.Authenticated {
			once.Do(func() {
				close(ended)
				cancel()
			})
		}
	})
	if err != nil {
		logger.Warn("session watch stopped", zap.Error(err))
	}
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "@every 1h", "cron spec or descriptor")
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "also run once immediately")
	rootCmd.AddCommand(scheduleCmd)
}
