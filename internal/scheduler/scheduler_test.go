package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/registry"
)

type fakeTrigger struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeTrigger) TriggerScrape(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.errs[id]
}

func (f *fakeTrigger) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestScrapeJob_ContinuesPastFailures(t *testing.T) {
	ft := &fakeTrigger{errs: map[string]error{
		"b": apierr.NewRemote(404, "Channel b not found"),
		"c": registry.ErrScrapeInFlight,
	}}
	err := ScrapeJob(ft, []string{"a", "b", "c", "d"}, nil)(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel b")
	assert.NotContains(t, err.Error(), "channel c", "in-flight channels are skipped, not failed")
	assert.Equal(t, []string{"a", "b", "c", "d"}, ft.Calls())
}

func TestScrapeJob_StopsOnAuthFailure(t *testing.T) {
	ft := &fakeTrigger{errs: map[string]error{"b": apierr.NewAuth(401, "expired")}}
	err := ScrapeJob(ft, []string{"a", "b", "c"}, nil)(context.Background())

	assert.True(t, apierr.Is(err, apierr.KindAuth))
	assert.Equal(t, []string{"a", "b"}, ft.Calls())
}

func TestScrapeJob_Canceled(t *testing.T) {
	ft := &fakeTrigger{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ScrapeJob(ft, []string{"a"}, nil)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ft.Calls())
}

func TestAddJob(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)

	require.NoError(t, s.AddJob("scrape", "@every 1h", func(context.Context) error { return nil }))
	require.NoError(t, s.AddJob("scrape", "0 */6 * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.AddJob("bad", "not a spec", func(context.Context) error { return nil }))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "scrape", jobs[0].Name)
	assert.Equal(t, "0 */6 * * *", jobs[0].Spec)

	s.RemoveJob("scrape")
	assert.Empty(t, s.ListJobs())
}

func TestNew_BadTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestRun_HaltsOnAuthFailure(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	s.run("ok", func(context.Context) error { return errors.New("transient") })
	assert.NoError(t, s.Err())

	authErr := apierr.NewAuth(401, "expired")
	s.run("scrape", func(context.Context) error { return authErr })
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not halt")
	}
	assert.Equal(t, authErr, s.Err())
}

func TestScheduledRun(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)

	ran := make(chan struct{}, 4)
	require.NoError(t, s.AddJob("tick", "@every 1s", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}))
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestRunNow(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)
	err = s.RunNow(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	assert.NoError(t, err)
}
