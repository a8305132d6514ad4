package cmd

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/tgdeck/internal/fakebackend"
)

// seedChannel stores 25 messages from 3 senders; every fifth carries a photo
// and messages 10 and 20 mention a launch.
func seedChannel(srv *fakebackend.Server, id string) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := make([]fakebackend.Message, 0, 25)
	for i := 1; i <= 25; i++ {
		sender := int64(i % 3)
		m := fakebackend.Message{
			ID:        int64(i),
			MessageID: int64(1000 + i),
			Date:      base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			SenderID:  &sender,
			FirstName: fmt.Sprintf("user%d", sender),
			Message:   fmt.Sprintf("hello %d", i),
		}
		if i%10 == 0 {
			m.Message = fmt.Sprintf("launch update %d", i)
		}
		if i%5 == 0 {
			m.MediaType = "photo"
			m.MediaPath = fmt.Sprintf("media/%d.jpg", i)
		}
		msgs = append(msgs, m)
	}
	srv.SeedMessages(id, msgs)
}

func TestDataShow(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	seedChannel(srv, "-100123")

	out, err := executeCommand(rootCmd, "data", "show", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Channel -100123")
	assert.Contains(t, out, "Showing 1 to 20 of 25 messages (page 1 of 2)")

	out, err = executeCommand(rootCmd, "data", "show", "--page", "2", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 21 to 25 of 25 messages (page 2 of 2)")

	out, err = executeCommand(rootCmd, "data", "show", "-s", "LAUNCH", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 to 2 of 2 messages (page 1 of 1)")
	assert.Contains(t, out, "launch update 10")
	assert.NotContains(t, out, "hello 3")

	out, err = executeCommand(rootCmd, "data", "show", "-s", "nothing-matches", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "No messages found")
}

func TestDataShow_JSON(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	seedChannel(srv, "-100123")

	out, err := executeCommand(rootCmd, "data", "show", "-f", "json", "-s", "launch", "--", "-100123")
	require.NoError(t, err)

	var doc struct {
		ChannelID string `json:"channel_id"`
		Search    string `json:"search"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "-100123", doc.ChannelID)
	assert.Equal(t, "launch", doc.Search)
}

func TestDataShow_BadFormat(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	_, err := executeCommand(rootCmd, "data", "show", "-f", "yaml", "--", "-100123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
	assert.Zero(t, srv.Count("GET", "/channel-data/-100123"))
}

func TestDataShow_LoadFailure(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.FailNext("GET", "/channel-data/-100123", 500, "database is locked")

	_, err := executeCommand(rootCmd, "data", "show", "--", "-100123")
	require.Error(t, err)
	assert.Equal(t, "Failed to load channel data", err.Error())
}

func TestDataStats(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	seedChannel(srv, "-100123")

	out, err := executeCommand(rootCmd, "data", "stats", "--", "-100123")
	require.NoError(t, err)
	assert.Regexp(t, `Total messages:\s+25`, out)
	assert.Regexp(t, `Messages with media:\s+5`, out)
	assert.Regexp(t, `Unique senders:\s+3`, out)
}

func TestDataExport(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	out, err := executeCommand(rootCmd, "data", "export", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Data exported successfully in CSV format")
	assert.Contains(t, out, "exports/-100123_messages.csv")
	assert.Equal(t, 1, srv.Count("GET", "/export-data/-100123/csv"))

	out, err = executeCommand(rootCmd, "data", "export", "-f", "json", "--", "-100123")
	require.NoError(t, err)
	assert.Contains(t, out, "Data exported successfully in JSON format")

	_, err = executeCommand(rootCmd, "data", "export", "-f", "xml", "--", "-100123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported export format")
	assert.Zero(t, srv.Count("GET", "/export-data/-100123/xml"))
}

func TestDataBrowse_NeedsTerminal(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)

	_, err := executeCommand(rootCmd, "data", "browse", "--", "-100123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browse needs a terminal")
}

func TestDashboard(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetCredentials(testEmail, fakebackend.Credentials{APIID: 12345, APIHash: "0123456789abcdef", Phone: "+15551234567"})
	srv.SetChannels(testEmail, map[string]int64{"-100123": 1025, "-100456": 0})
	seedChannel(srv, "-100123")

	out, err := executeCommand(rootCmd, "dashboard")
	require.NoError(t, err)
	assert.Regexp(t, `Telegram:\s+connected`, out)
	assert.Regexp(t, `Channels:\s+2`, out)
	assert.Regexp(t, `Messages:\s+25`, out)
	assert.Regexp(t, `Media:\s+5`, out)
	assert.Regexp(t, `-100123\s+1025\s+25\s+5`, out)
}

func TestDashboard_SkipsFailedChannel(t *testing.T) {
	srv := testBackend(t)
	loggedIn(t, srv)
	srv.SetChannels(testEmail, map[string]int64{"-100123": 0, "-100456": 0})
	seedChannel(srv, "-100123")
	srv.FailNext("GET", "/channel-data/-100456", 500, "boom")

	out, err := executeCommand(rootCmd, "dashboard", "-f", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "- Telegram: not configured")
	assert.Contains(t, out, "- Messages: 25")
	assert.Contains(t, out, "| -100456 | 0 | ? | ? |")
}
