package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Message is one scraped channel message. Optional text fields are empty when
// the backend sent null.
type Message struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	Date      string `json:"date"`
	SenderID  *int64 `json:"sender_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	MediaType string `json:"media_type"`
	MediaPath string `json:"media_path"`
	ReplyTo   *int64 `json:"reply_to"`
}

// HasMedia reports whether the message carries media.
func (m Message) HasMedia() bool { return m.MediaType != "" }

// Time parses Date. The backend writes naive ISO timestamps; those are read
// as UTC.
func (m Message) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stats summarises a message set.
type Stats struct {
	TotalMessages     int `json:"total_messages"`
	MessagesWithMedia int `json:"messages_with_media"`
	UniqueSenders     int `json:"unique_senders"`
}

// ComputeStats derives Stats in one pass. A missing sender id counts as one
// distinct sender.
func ComputeStats(msgs []Message) Stats {
	senders := make(map[int64]struct{})
	anonymous := false
	st := Stats{TotalMessages: len(msgs)}
	for _, m := range msgs {
		if m.HasMedia() {
			st.MessagesWithMedia++
		}
		if m.SenderID == nil {
			anonymous = true
			continue
		}
		senders[*m.SenderID] = struct{}{}
	}
	st.UniqueSenders = len(senders)
	if anonymous {
		st.UniqueSenders++
	}
	return st
}

// Filter returns the messages whose text, first name, last name or username
// contains term, ignoring case. A blank term returns msgs unchanged.
func Filter(msgs []Message, term string) []Message {
	if strings.TrimSpace(term) == "" {
		return msgs
	}
	needle := strings.ToLower(term)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if matches(m, needle) {
			out = append(out, m)
		}
	}
	return out
}

func matches(m Message, needle string) bool {
	for _, field := range [...]string{m.Message, m.FirstName, m.LastName, m.Username} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// SenderLabel is the display name of the sender: full name, either name,
// @username, or "User <id>" as a last resort.
func SenderLabel(m Message) string {
	switch {
	case m.FirstName != "" && m.LastName != "":
		return m.FirstName + " " + m.LastName
	case m.FirstName != "":
		return m.FirstName
	case m.LastName != "":
		return m.LastName
	case m.Username != "":
		return "@" + m.Username
	case m.SenderID != nil:
		return fmt.Sprintf("User %d", *m.SenderID)
	default:
		return "Unknown"
	}
}

// MediaLabel is the short media kind ("Photo" for MessageMediaPhoto), or
// "None".
func MediaLabel(m Message) string {
	if !m.HasMedia() {
		return "None"
	}
	return strings.Replace(m.MediaType, "MessageMedia", "", 1)
}

// TextLabel is the message text, or a placeholder for media-only messages.
func TextLabel(m Message) string {
	if m.Message == "" {
		return "(No text content)"
	}
	return m.Message
}
