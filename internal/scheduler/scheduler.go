// Package scheduler fires one-shot scrape triggers on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/registry"
)

// jobTimeout bounds a single run of a job.
const jobTimeout = 10 * time.Minute

// Job is a scheduled task.
type Job func(ctx context.Context) error

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name    string
	Spec    string
	NextRun time.Time
	LastRun time.Time
}

// Scheduler runs Jobs on cron specs. A job failing with an AuthFailure halts
// the whole scheduler: the session is gone and every later run would fail the
// same way.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu    sync.Mutex
	jobs  map[string]cron.EntryID
	specs map[string]string

	haltOnce sync.Once
	done     chan struct{}
	haltErr  error
}

// New creates a scheduler evaluating specs in the named timezone ("" or
// "Local" for the system zone). Specs accept the standard five fields and
// descriptors such as "@every 1h".
func New(timezone string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
		}
		loc = l
	}

	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{
		cron:   c,
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
		specs:  make(map[string]string),
		done:   make(chan struct{}),
	}, nil
}

// AddJob schedules job under name. A second job with the same name replaces
// the first.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	entryID, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.specs[name] = spec
	s.mu.Unlock()

	s.logger.Info("added job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info("starting job", zap.String("job", name))
	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		if apierr.Is(err, apierr.KindAuth) {
			s.halt(err)
		}
		return
	}
	s.logger.Info("job completed", zap.String("job", name), zap.Duration("dur", time.Since(start)))
}

func (s *Scheduler) halt(err error) {
	s.haltOnce.Do(func() {
		s.haltErr = err
		close(s.done)
		// Stop waits for running jobs, and this runs inside one.
		go s.cron.Stop()
	})
}

// Done is closed when the scheduler halts on an AuthFailure.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Err returns the error that halted the scheduler, if any. Valid after Done
// is closed.
func (s *Scheduler) Err() error {
	select {
	case <-s.done:
		return s.haltErr
	default:
		return nil
	}
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		delete(s.specs, name)
		s.logger.Info("removed job", zap.String("job", name))
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow executes job immediately under the same timeout as scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return job(ctx)
}

// ListJobs returns the scheduled jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					Spec:    s.specs[name],
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}

// Trigger fires a one-shot scrape. *registry.Registry satisfies it.
type Trigger interface {
	TriggerScrape(ctx context.Context, channelID string) error
}

// ScrapeJob triggers each channel in turn. Failures are collected and the
// remaining channels still run, except an AuthFailure which ends the run.
// A channel already in flight is skipped.
func ScrapeJob(t Trigger, channels []string, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		var errs []error
		for _, id := range channels {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			err := t.TriggerScrape(ctx, id)
			switch {
			case err == nil:
				logger.Info("scrape triggered", zap.String("channel", id))
			case errors.Is(err, registry.ErrScrapeInFlight):
				logger.Debug("scrape still in flight, skipping", zap.String("channel", id))
			case apierr.Is(err, apierr.KindAuth):
				return err
			default:
				logger.Warn("scrape trigger failed", zap.String("channel", id), zap.Error(err))
				errs = append(errs, fmt.Errorf("channel %s: %w", id, err))
			}
		}
		return errors.Join(errs...)
	}
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
