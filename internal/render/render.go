// Package render turns component state into command output: plain text for
// the terminal, Markdown for pasting elsewhere, and JSON for scripts.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fakeyudi/tgdeck/internal/dashboard"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/registry"
)

// Renderer serializes the state shown by the data, channels and dashboard
// commands.
type Renderer interface {
	Dataset(s dataset.State) ([]byte, error)
	Channels(ch registry.Channels) ([]byte, error)
	Dashboard(sum dashboard.Summary) ([]byte, error)
}

// New returns the Renderer for format: "text", "markdown" or "json".
func New(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &TextRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (use text, markdown or json)", format)
}

const timeLayout = "2006-01-02 15:04:05"

func showTime(m dataset.Message) string {
	if t, ok := m.Time(); ok {
		return t.Format(timeLayout)
	}
	return m.Date
}

// showing is the pagination caption.
func showing(s dataset.State) string {
	if s.Matches == 0 {
		return "No messages found"
	}
	return fmt.Sprintf("Showing %d to %d of %d messages (page %d of %d)", s.From, s.To, s.Matches, s.Page, s.TotalPages)
}

// JSONRenderer renders as indented JSON.
type JSONRenderer struct{}

type datasetDoc struct {
	ChannelID  string            `json:"channel_id"`
	Stats      dataset.Stats     `json:"stats"`
	Search     string            `json:"search,omitempty"`
	Matches    int               `json:"matches"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Messages   []dataset.Message `json:"messages"`
}

func (r *JSONRenderer) Dataset(s dataset.State) ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []dataset.Message{}
	}
	return json.MarshalIndent(datasetDoc{
		ChannelID:  s.ChannelID,
		Stats:      s.Stats,
		Search:     s.Term,
		Matches:    s.Matches,
		Page:       s.Page,
		TotalPages: s.TotalPages,
		Messages:   items,
	}, "", "  ")
}

func (r *JSONRenderer) Channels(ch registry.Channels) ([]byte, error) {
	if ch == nil {
		ch = registry.Channels{}
	}
	return json.MarshalIndent(ch, "", "  ")
}

func (r *JSONRenderer) Dashboard(sum dashboard.Summary) ([]byte, error) {
	if sum.Channels == nil {
		sum.Channels = []dashboard.ChannelSummary{}
	}
	return json.MarshalIndent(sum, "", "  ")
}

// MarkdownRenderer renders Markdown tables.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Dataset(s dataset.State) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Channel %s\n\n", s.ChannelID)

	sb.WriteString("## Statistics\n\n")
	fmt.Fprintf(&sb, "- Total messages: %d\n", s.Stats.TotalMessages)
	fmt.Fprintf(&sb, "- Messages with media: %d\n", s.Stats.MessagesWithMedia)
	fmt.Fprintf(&sb, "- Unique senders: %d\n", s.Stats.UniqueSenders)
	sb.WriteString("\n")

	sb.WriteString("## Messages\n\n")
	if s.Term != "" {
		fmt.Fprintf(&sb, "_Search: %s_\n\n", escapeCell(s.Term))
	}
	if len(s.Items) == 0 {
		sb.WriteString("_No messages found._\n")
		return []byte(sb.String()), nil
	}
	sb.WriteString("| Date | Sender | Message | Media |\n")
	sb.WriteString("|------|--------|---------|-------|\n")
	for _, m := range s.Items {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
			showTime(m),
			escapeCell(dataset.SenderLabel(m)),
			escapeCell(dataset.TextLabel(m)),
			dataset.MediaLabel(m),
		)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s\n", showing(s))
	return []byte(sb.String()), nil
}

func (r *MarkdownRenderer) Channels(ch registry.Channels) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString("## Channels\n\n")
	if len(ch) == 0 {
		sb.WriteString("_No channels tracked._\n")
		return []byte(sb.String()), nil
	}
	sb.WriteString("| Channel | Last message id |\n")
	sb.WriteString("|---------|-----------------|\n")
	for _, id := range ch.IDs() {
		fmt.Fprintf(&sb, "| %s | %d |\n", id, ch[id])
	}
	return []byte(sb.String()), nil
}

func (r *MarkdownRenderer) Dashboard(sum dashboard.Summary) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString("# Dashboard\n\n")
	fmt.Fprintf(&sb, "- Telegram: %s\n", readiness(sum.TelegramReady))
	fmt.Fprintf(&sb, "- Channels: %d\n", sum.TotalChannels)
	fmt.Fprintf(&sb, "- Messages: %d\n", sum.TotalMessages)
	fmt.Fprintf(&sb, "- Media: %d\n", sum.TotalMedia)
	if len(sum.Channels) == 0 {
		return []byte(sb.String()), nil
	}
	sb.WriteString("\n| Channel | Last message id | Messages | Media |\n")
	sb.WriteString("|---------|-----------------|----------|-------|\n")
	for _, c := range sum.Channels {
		fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n", c.ID, c.Cursor, count(c, c.Messages), count(c, c.Media))
	}
	return []byte(sb.String()), nil
}

// TextRenderer renders aligned plain text.
type TextRenderer struct{}

func (r *TextRenderer) Dataset(s dataset.State) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel %s\n", s.ChannelID)
	fmt.Fprintf(&sb, "  Total messages:       %d\n", s.Stats.TotalMessages)
	fmt.Fprintf(&sb, "  Messages with media:  %d\n", s.Stats.MessagesWithMedia)
	fmt.Fprintf(&sb, "  Unique senders:       %d\n", s.Stats.UniqueSenders)
	sb.WriteString("\n")
	if s.Term != "" {
		fmt.Fprintf(&sb, "Search: %s\n\n", s.Term)
	}
	if len(s.Items) > 0 {
		tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tSENDER\tMESSAGE\tMEDIA")
		for _, m := range s.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", showTime(m), dataset.SenderLabel(m), oneLine(dataset.TextLabel(m), 60), dataset.MediaLabel(m))
		}
		if err := tw.Flush(); err != nil {
			return nil, err
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%s\n", showing(s))
	return []byte(sb.String()), nil
}

func (r *TextRenderer) Channels(ch registry.Channels) ([]byte, error) {
	if len(ch) == 0 {
		return []byte("No channels tracked.\n"), nil
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tLAST MESSAGE ID")
	for _, id := range ch.IDs() {
		fmt.Fprintf(tw, "%s\t%d\n", id, ch[id])
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func (r *TextRenderer) Dashboard(sum dashboard.Summary) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Telegram:  %s\n", readiness(sum.TelegramReady))
	fmt.Fprintf(&sb, "Channels:  %d\n", sum.TotalChannels)
	fmt.Fprintf(&sb, "Messages:  %d\n", sum.TotalMessages)
	fmt.Fprintf(&sb, "Media:     %d\n", sum.TotalMedia)
	if len(sum.Channels) == 0 {
		return []byte(sb.String()), nil
	}
	sb.WriteString("\n")
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tLAST MESSAGE ID\tMESSAGES\tMEDIA")
	for _, c := range sum.Channels {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.ID, c.Cursor, count(c, c.Messages), count(c, c.Media))
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func readiness(ready bool) string {
	if ready {
		return "connected"
	}
	return "not configured"
}

func count(c dashboard.ChannelSummary, n int) string {
	if c.Failed {
		return "?"
	}
	return fmt.Sprintf("%d", n)
}

// escapeCell makes s safe inside a Markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// oneLine collapses whitespace and truncates to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
