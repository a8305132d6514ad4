package render_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/tgdeck/internal/dashboard"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/registry"
	"github.com/fakeyudi/tgdeck/internal/render"
)

func sender(id int64) *int64 { return &id }

func sampleState() dataset.State {
	return dataset.State{
		ChannelID: "-1001",
		Stats:     dataset.Stats{TotalMessages: 3, MessagesWithMedia: 1, UniqueSenders: 2},
		Items: []dataset.Message{
			{ID: 1, MessageID: 10, Date: "2024-03-01T12:00:00", SenderID: sender(7), FirstName: "Ada", LastName: "Lovelace", Message: "hello | world"},
			{ID: 2, MessageID: 11, Date: "2024-03-01T12:05:00", SenderID: sender(8), Username: "bob", MediaType: "MessageMediaPhoto"},
		},
		Matches:    3,
		Page:       1,
		TotalPages: 2,
		From:       1,
		To:         2,
	}
}

func TestNew(t *testing.T) {
	for _, f := range []string{"", "text", "markdown", "md", "JSON"} {
		r, err := render.New(f)
		require.NoError(t, err, f)
		assert.NotNil(t, r)
	}
	_, err := render.New("xml")
	assert.Error(t, err)
}

func TestText_Dataset(t *testing.T) {
	out, err := (&render.TextRenderer{}).Dataset(sampleState())
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "Channel -1001")
	assert.Contains(t, s, "Total messages:       3")
	assert.Contains(t, s, "Ada Lovelace")
	assert.Contains(t, s, "@bob")
	assert.Contains(t, s, "Photo")
	assert.Contains(t, s, "(No text content)")
	assert.Contains(t, s, "Showing 1 to 2 of 3 messages (page 1 of 2)")
}

func TestText_EmptyDataset(t *testing.T) {
	out, err := (&render.TextRenderer{}).Dataset(dataset.State{ChannelID: "x", Page: 1})
	require.NoError(t, err)
	assert.Contains(t, string(out), "No messages found")
	assert.NotContains(t, string(out), "DATE")
}

func TestMarkdown_Dataset(t *testing.T) {
	out, err := (&render.MarkdownRenderer{}).Dataset(sampleState())
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "# Channel -1001")
	assert.Contains(t, s, "| Date | Sender | Message | Media |")
	assert.Contains(t, s, `hello \| world`)
	assert.Contains(t, s, "| 2024-03-01 12:05:00 | @bob | (No text content) | Photo |")
}

// Feature: tgdeck, Property: one markdown row per message on the page
func TestMarkdown_RowPerItem(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 25).Draw(t, "n")
		items := make([]dataset.Message, n)
		for i := range items {
			items[i] = dataset.Message{
				ID:      int64(i),
				Message: rapid.String().Draw(t, "text"),
			}
		}
		out, err := (&render.MarkdownRenderer{}).Dataset(dataset.State{Items: items, Matches: n, Page: 1, TotalPages: 1, From: 1, To: n})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		rows := 0
		for _, line := range strings.Split(string(out), "\n") {
			if strings.HasPrefix(line, "| ") && !strings.HasPrefix(line, "| Date") {
				rows++
			}
		}
		if rows != n {
			t.Fatalf("want %d rows, got %d:\n%s", n, rows, out)
		}
	})
}

func TestJSON_Dataset(t *testing.T) {
	out, err := (&render.JSONRenderer{}).Dataset(sampleState())
	require.NoError(t, err)

	var doc struct {
		ChannelID string            `json:"channel_id"`
		Stats     dataset.Stats     `json:"stats"`
		Messages  []dataset.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "-1001", doc.ChannelID)
	assert.Equal(t, 3, doc.Stats.TotalMessages)
	assert.Len(t, doc.Messages, 2)

	empty, err := (&render.JSONRenderer{}).Dataset(dataset.State{})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"messages": []`)
}

func TestChannels(t *testing.T) {
	ch := registry.Channels{"-1002": 5, "-1001": 0}

	text, err := (&render.TextRenderer{}).Channels(ch)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(text), "-1001"), strings.Index(string(text), "-1002"))

	md, err := (&render.MarkdownRenderer{}).Channels(ch)
	require.NoError(t, err)
	assert.Contains(t, string(md), "| -1002 | 5 |")

	js, err := (&render.JSONRenderer{}).Channels(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(js))

	none, err := (&render.TextRenderer{}).Channels(nil)
	require.NoError(t, err)
	assert.Equal(t, "No channels tracked.\n", string(none))
}

func TestDashboard(t *testing.T) {
	sum := dashboard.Summary{
		TelegramReady: true,
		TotalChannels: 2,
		TotalMessages: 4,
		TotalMedia:    1,
		Channels: []dashboard.ChannelSummary{
			{ID: "-1001", Cursor: 9, Messages: 4, Media: 1},
			{ID: "-1002", Failed: true},
		},
	}
	text, err := (&render.TextRenderer{}).Dashboard(sum)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Telegram:  connected")
	assert.Contains(t, string(text), "?")

	md, err := (&render.MarkdownRenderer{}).Dashboard(sum)
	require.NoError(t, err)
	assert.Contains(t, string(md), "| -1001 | 9 | 4 | 1 |")
	assert.Contains(t, string(md), "| -1002 | 0 | ? | ? |")

	js, err := (&render.JSONRenderer{}).Dashboard(dashboard.Summary{})
	require.NoError(t, err)
	assert.Contains(t, string(js), `"channels": []`)
}
