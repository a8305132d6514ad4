package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/tgdeck/internal/fakebackend"
)

func scheduleBackend(t *testing.T) *fakebackend.Server {
	t.Helper()
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetCredentials(testEmail, fakebackend.Credentials{APIID: 12345, APIHash: "0123456789abcdef", Phone: "+15551234567"})
	srv.SetChannels(testEmail, map[string]int64{"-100123": 0, "-100456": 0})
	return srv
}

// runSchedule executes schedule under ctx. cobra only hands the root context
// to a subcommand that has none, so it is set directly.
func runSchedule(ctx context.Context, args ...string) (string, error) {
	scheduleCmd.SetContext(ctx)
	return executeCommandIn(ctx, rootCmd, "", append([]string{"schedule"}, args...)...)
}

func TestSchedule_RunNowUntilInterrupted(t *testing.T) {
	srv := scheduleBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := runSchedule(ctx, "--cron", "@every 1h", "--run-now")
	require.NoError(t, err)
	assert.Contains(t, out, `Scheduled "scrape" (@every 1h)`)
	assert.Contains(t, out, "Schedule stopped.")
	assert.Equal(t, 1, srv.Count("POST", "/scrape/-100123"))
	assert.Equal(t, 1, srv.Count("POST", "/scrape/-100456"))
}

func TestSchedule_SelectedChannels(t *testing.T) {
	srv := scheduleBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := runSchedule(ctx, "--run-now", "--", "-100456")
	require.NoError(t, err)
	assert.Zero(t, srv.Count("POST", "/scrape/-100123"))
	assert.Equal(t, 1, srv.Count("POST", "/scrape/-100456"))
}

func TestSchedule_EndsOnAuthFailure(t *testing.T) {
	srv := scheduleBackend(t)
	srv.FailNext("GET", "/channels", 401, "Could not validate credentials")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := runSchedule(ctx, "--run-now")
	require.ErrorIs(t, err, errSessionEnded)
	assert.Zero(t, srv.Count("POST", "/scrape/-100123"))
}

func TestSchedule_BadSpec(t *testing.T) {
	scheduleBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := runSchedule(ctx, "--cron", "not a spec")
	require.Error(t, err)
}
