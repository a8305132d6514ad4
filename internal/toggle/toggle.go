// Package toggle mirrors the backend's continuous-scrape mode. The backend
// pushes no updates, so the local state only moves when a start or stop call
// succeeds, and the last successful action is persisted for later processes.
package toggle

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/session"
	"github.com/fakeyudi/tgdeck/internal/storage"
)

// StorageKey holds the last successfully applied state.
const StorageKey = "continuous_scrape"

const msgToggleFailed = "Failed to toggle continuous scraping"

// State is the continuous-scrape mode.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// API is the authenticated backend surface used here.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Toggle is the two-state control.
type Toggle struct {
	api    API
	kv     storage.Store
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	verified bool
	feedback apierr.Feedback
}

// New returns a Toggle initialised from the persisted state, Stopped when
// nothing was persisted.
func New(api API, kv storage.Store, logger *zap.Logger) *Toggle {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Toggle{api: api, kv: kv, logger: logger}
	v, ok, err := kv.Get(StorageKey)
	if err != nil {
		logger.Warn("failed to read continuous-scrape state", zap.Error(err))
	}
	if ok && v == Running.String() {
		t.state = Running
	}
	return t
}

// ClearOnLogout removes the persisted state whenever sess ends, so the next
// account to log in starts from Stopped. The returned func unsubscribes.
func ClearOnLogout(sess *session.Store, kv storage.Store, logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sess.Subscribe(func(snap session.Snapshot) {
		if snap.State != session.Unauthenticated {
			return
		}
		if err := kv.Remove(StorageKey); err != nil {
			logger.Warn("failed to clear continuous-scrape state", zap.Error(err))
		}
	})
}

// State returns the local shadow of the backend mode.
func (t *Toggle) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Verified reports whether the state was last confirmed by the backend's
// status endpoint rather than derived from the last action.
func (t *Toggle) Verified() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.verified
}

// Feedback returns the scoped message of the last operation.
func (t *Toggle) Feedback() apierr.Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feedback
}

// Start asks the backend to begin continuous scraping.
func (t *Toggle) Start(ctx context.Context) error {
	return t.apply(ctx, Running)
}

// Stop asks the backend to stop continuous scraping.
func (t *Toggle) Stop(ctx context.Context) error {
	return t.apply(ctx, Stopped)
}

// Toggle issues whichever of Start or Stop flips the current state.
func (t *Toggle) Toggle(ctx context.Context) error {
	if t.State() == Running {
		return t.Stop(ctx)
	}
	return t.Start(ctx)
}

func (t *Toggle) apply(ctx context.Context, want State) error {
	path, success := "/continuous-scrape/start", "Continuous scraping started"
	if want == Stopped {
		path, success = "/continuous-scrape/stop", "Continuous scraping stopped"
	}

	t.mu.Lock()
	t.feedback = apierr.Feedback{}
	t.mu.Unlock()

	if err := t.api.Post(ctx, path, nil, nil); err != nil {
		t.logger.Warn("failed to toggle continuous scraping",
			zap.Stringer("want", want), zap.Error(err))
		t.mu.Lock()
		t.feedback = apierr.Failed(msgToggleFailed)
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.state = want
	t.verified = false
	t.feedback = apierr.Succeeded(success)
	t.mu.Unlock()
	t.persist(want)
	return nil
}

func (t *Toggle) persist(s State) {
	if err := t.kv.Set(StorageKey, s.String()); err != nil {
		t.logger.Warn("failed to persist continuous-scrape state", zap.Error(err))
	}
}

// Resync asks the backend for its actual mode. Backends without the status
// endpoint (404 or 405) leave the persisted state in place and report
// verified=false with no error.
func (t *Toggle) Resync(ctx context.Context) (State, bool, error) {
	var resp struct {
		Running bool `json:"running"`
	}
	err := t.api.Get(ctx, "/continuous-scrape/status", &resp)
	if err != nil {
		switch apierr.StatusOf(err) {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			if apierr.Is(err, apierr.KindRemote) {
				t.logger.Debug("backend has no continuous-scrape status endpoint")
				t.mu.Lock()
				defer t.mu.Unlock()
				t.verified = false
				return t.state, false, nil
			}
		}
		t.logger.Warn("failed to resync continuous scraping", zap.Error(err))
		return t.State(), false, err
	}

	s := Stopped
	if resp.Running {
		s = Running
	}
	t.mu.Lock()
	t.state = s
	t.verified = true
	t.mu.Unlock()
	t.persist(s)
	return s, true, nil
}
