// Package dashboard aggregates the account overview: upstream credential
// readiness, tracked channels, and message totals across them.
package dashboard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/credentials"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/registry"
)

const msgLoadFailed = "Failed to load dashboard data"

// ChannelSummary is one tracked channel's line on the dashboard.
type ChannelSummary struct {
	ID       string `json:"id"`
	Cursor   int64  `json:"last_message_id"`
	Messages int    `json:"messages"`
	Media    int    `json:"media"`
	// Failed is set when the channel's data could not be fetched; its counts
	// are then zero and excluded from the totals.
	Failed bool `json:"failed,omitempty"`
}

// Summary is the dashboard.
type Summary struct {
	TelegramReady bool             `json:"telegram_ready"`
	TotalChannels int              `json:"total_channels"`
	TotalMessages int              `json:"total_messages"`
	TotalMedia    int              `json:"total_media"`
	Channels      []ChannelSummary `json:"channels"`
}

// Loader builds Summaries.
type Loader struct {
	api    registry.API
	logger *zap.Logger
}

// New returns a Loader.
func New(api registry.API, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{api: api, logger: logger}
}

// Load probes the credentials, lists the channels, then fetches each
// channel's data in turn. Per-channel failures are logged and skipped; only a
// failed channel list fails the whole load.
func (l *Loader) Load(ctx context.Context) (Summary, apierr.Feedback, error) {
	var sum Summary

	_, ok, _, err := credentials.New(l.api, l.logger).Get(ctx)
	if apierr.Is(err, apierr.KindAuth) {
		return Summary{}, apierr.Failed(msgLoadFailed), err
	}
	sum.TelegramReady = ok && err == nil

	reg := registry.New(l.api, l.logger)
	channels, err := reg.List(ctx)
	if err != nil {
		return Summary{}, apierr.Failed(msgLoadFailed), err
	}
	sum.TotalChannels = len(channels)

	for _, id := range channels.IDs() {
		cs := ChannelSummary{ID: id, Cursor: channels[id]}
		view := dataset.NewView(l.api, id, 0, l.logger)
		if err := view.Fetch(ctx); err != nil {
			if apierr.Is(err, apierr.KindAuth) || errors.Is(err, context.Canceled) {
				return Summary{}, apierr.Failed(msgLoadFailed), err
			}
			l.logger.Warn("skipping channel on dashboard", zap.String("channel", id), zap.Error(err))
			cs.Failed = true
			sum.Channels = append(sum.Channels, cs)
			continue
		}
		st := view.Stats()
		cs.Messages, cs.Media = st.TotalMessages, st.MessagesWithMedia
		sum.TotalMessages += st.TotalMessages
		sum.TotalMedia += st.MessagesWithMedia
		sum.Channels = append(sum.Channels, cs)
	}
	return sum, apierr.Feedback{}, nil
}
