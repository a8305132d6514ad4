package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/tgdeck/internal/fakebackend"
)

func TestChannelsAddListRemove(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	out, err := executeCommand(rootCmd, "channels", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No channels tracked.")

	out, err = executeCommand(rootCmd, "channels", "add", "--cursor", "42", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Channel -100123 added successfully")

	// --cursor is not carried into the next add.
	_, err = executeCommand(rootCmd, "ch", "add", "--", "-100456")
	require.NoError(t, err)

	out, err = executeCommand(rootCmd, "channels", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "CHANNEL")
	assert.Regexp(t, `-100123\s+42`, out)
	assert.Regexp(t, `-100456\s+0`, out)

	out, err = executeCommand(rootCmd, "channels", "rm", "-y", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Channel -100123 removed successfully")

	out, err = executeCommand(rootCmd, "channels", "list", "-f", "json")
	require.NoError(t, err)
	var listed map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, map[string]int64{"-100456": 0}, listed)
}

func TestChannelsAdd_EmptyID(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	_, err := executeCommand(rootCmd, "channels", "add", "")
	require.Error(t, err)
	assert.Equal(t, "Please enter a channel ID", err.Error())
	assert.Zero(t, srv.Count("POST", "/channels"))
}

func TestChannelsRemove_Declined(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetChannels(testEmail, map[string]int64{"-100123": 7})

	out, err := executeCommandIn(context.Background(), rootCmd, "n\n", "channels", "rm", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Are you sure you want to remove channel -100123?")
	assert.Contains(t, out, "Cancelled.")
	assert.Zero(t, srv.Count("DELETE", "/channels/-100123"))

	out, err = executeCommandIn(context.Background(), rootCmd, "y\n", "channels", "rm", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "removed successfully")
	assert.Equal(t, 1, srv.Count("DELETE", "/channels/-100123"))
}

func TestChannelsRemove_Unknown(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	_, err := executeCommand(rootCmd, "channels", "rm", "-y", "--", "-1")
	require.Error(t, err)
	assert.Equal(t, "Failed to remove channel", err.Error())
}

func TestChannelsAvailable(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetAvailable([]fakebackend.Channel{{ID: "-100123", Title: "Launch news"}})

	_, err := executeCommand(rootCmd, "channels", "available")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Make sure your Telegram credentials are set correctly")

	srv.SetCredentials(testEmail, fakebackend.Credentials{APIID: 12345, APIHash: "0123456789abcdef", Phone: "+15551234567"})
	out, err := executeCommand(rootCmd, "channels", "available")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Regexp(t, `-100123\s+Launch news`, out)
}

func TestChannelsScrape(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetCredentials(testEmail, fakebackend.Credentials{APIID: 12345, APIHash: "0123456789abcdef", Phone: "+15551234567"})
	srv.SetChannels(testEmail, map[string]int64{"-100123": 0})

	out, err := executeCommand(rootCmd, "channels", "scrape", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Scraping started for channel -100123")

	_, err = executeCommand(rootCmd, "channels", "scrape", "--", "-100999")
	require.Error(t, err)
	assert.Equal(t, "Failed to start scraping", err.Error())
}

func TestSettings(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	out, err := executeCommand(rootCmd, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Scrape media: true")

	_, err = executeCommand(rootCmd, "settings", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	out, err = executeCommand(rootCmd, "settings", "set", "--media=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Scrape settings updated successfully")

	out, err = executeCommand(rootCmd, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Scrape media: false")
}
