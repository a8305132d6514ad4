package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/fakeyudi/tgdeck/internal/dataset"
)

func ptr(n int64) *int64 { return &n }

// genMessage produces an arbitrary Message drawn from a small vocabulary so
// that searches actually hit.
func genMessage(t *rapid.T, label string) dataset.Message {
	words := []string{"", "Hello", "world", "ALPHA", "beta", "Gamma ray", "ünïcode"}
	m := dataset.Message{
		ID:        rapid.Int64Range(1, 1_000_000).Draw(t, label+"_id"),
		Message:   rapid.SampledFrom(words).Draw(t, label+"_text"),
		FirstName: rapid.SampledFrom(words).Draw(t, label+"_first"),
		LastName:  rapid.SampledFrom(words).Draw(t, label+"_last"),
		Username:  rapid.SampledFrom(words).Draw(t, label+"_user"),
		MediaType: rapid.SampledFrom([]string{"", "MessageMediaPhoto", "MessageMediaDocument"}).Draw(t, label+"_media"),
	}
	if rapid.Bool().Draw(t, label+"_has_sender") {
		m.SenderID = ptr(rapid.Int64Range(1, 5).Draw(t, label+"_sender"))
	}
	return m
}

func genMessages(t *rapid.T) []dataset.Message {
	n := rapid.IntRange(0, 60).Draw(t, "n")
	msgs := make([]dataset.Message, n)
	for i := range msgs {
		msgs[i] = genMessage(t, "msg")
	}
	return msgs
}

func TestComputeStats(t *testing.T) {
	msgs := []dataset.Message{
		{SenderID: ptr(1), MediaType: "MessageMediaPhoto"},
		{SenderID: ptr(1)},
		{SenderID: ptr(2), MediaType: "MessageMediaDocument"},
		{SenderID: nil},
		{SenderID: nil},
	}
	assert.Equal(t, dataset.Stats{TotalMessages: 5, MessagesWithMedia: 2, UniqueSenders: 3}, dataset.ComputeStats(msgs))
	assert.Equal(t, dataset.Stats{}, dataset.ComputeStats(nil))
}

// Feature: tgdeck, Property: stats are bounded by the message count
func TestComputeStatsBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msgs := genMessages(t)
		st := dataset.ComputeStats(msgs)
		if st.TotalMessages != len(msgs) {
			t.Fatalf("total %d != %d", st.TotalMessages, len(msgs))
		}
		if st.MessagesWithMedia > st.TotalMessages {
			t.Fatalf("media %d > total %d", st.MessagesWithMedia, st.TotalMessages)
		}
		if st.UniqueSenders > st.TotalMessages {
			t.Fatalf("senders %d > total %d", st.UniqueSenders, st.TotalMessages)
		}
	})
}

func TestFilter(t *testing.T) {
	msgs := []dataset.Message{
		{ID: 1, Message: "Launch at noon"},
		{ID: 2, FirstName: "Grace", LastName: "Hopper"},
		{ID: 3, Username: "ada_l"},
		{ID: 4, MediaType: "MessageMediaPhoto"},
	}
	ids := func(ms []dataset.Message) []int64 {
		out := []int64{}
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1}, ids(dataset.Filter(msgs, "LAUNCH")))
	assert.Equal(t, []int64{2}, ids(dataset.Filter(msgs, "hop")))
	assert.Equal(t, []int64{3}, ids(dataset.Filter(msgs, "Ada")))
	assert.Empty(t, dataset.Filter(msgs, "photo"), "media type is not searched")
	assert.Equal(t, msgs, dataset.Filter(msgs, ""))
	assert.Equal(t, msgs, dataset.Filter(msgs, "   "))
}

// Feature: tgdeck, Property: filtering yields a subset; blank term restores the set
func TestFilterSubset(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msgs := genMessages(t)
		term := rapid.SampledFrom([]string{"", " ", "hello", "WORLD", "a", "ray", "ÜNÏ", "zzz"}).Draw(t, "term")

		filtered := dataset.Filter(msgs, term)
		if len(filtered) > len(msgs) {
			t.Fatalf("filtered larger than input")
		}
		// Order-preserving subsequence check.
		j := 0
		for _, f := range filtered {
			for j < len(msgs) && msgs[j] != f {
				j++
			}
			if j == len(msgs) {
				t.Fatalf("filtered item %+v not in input order", f)
			}
			j++
		}

		all := dataset.Filter(msgs, "")
		if len(all) != len(msgs) {
			t.Fatalf("blank search returned %d of %d", len(all), len(msgs))
		}
	})
}

func TestSenderLabel(t *testing.T) {
	tests := []struct {
		m    dataset.Message
		want string
	}{
		{dataset.Message{FirstName: "Grace", LastName: "Hopper", Username: "gh"}, "Grace Hopper"},
		{dataset.Message{FirstName: "Grace"}, "Grace"},
		{dataset.Message{LastName: "Hopper"}, "Hopper"},
		{dataset.Message{Username: "gh", SenderID: ptr(9)}, "@gh"},
		{dataset.Message{SenderID: ptr(9)}, "User 9"},
		{dataset.Message{}, "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dataset.SenderLabel(tt.m))
	}
}

func TestMediaAndTextLabel(t *testing.T) {
	assert.Equal(t, "Photo", dataset.MediaLabel(dataset.Message{MediaType: "MessageMediaPhoto"}))
	assert.Equal(t, "None", dataset.MediaLabel(dataset.Message{}))
	assert.Equal(t, "(No text content)", dataset.TextLabel(dataset.Message{}))
	assert.Equal(t, "hi", dataset.TextLabel(dataset.Message{Message: "hi"}))
}

func TestMessageTime(t *testing.T) {
	for _, s := range []string{"2024-03-01T10:20:30", "2024-03-01T10:20:30.123456", "2024-03-01T10:20:30+00:00", "2024-03-01 10:20:30"} {
		tm, ok := dataset.Message{Date: s}.Time()
		assert.True(t, ok, s)
		assert.Equal(t, 2024, tm.Year(), s)
	}
	_, ok := dataset.Message{Date: "yesterday"}.Time()
	assert.False(t, ok)
}
