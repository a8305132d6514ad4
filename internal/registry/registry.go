// Package registry keeps the local copy of the tracked-channel registry in
// step with the backend and issues the channel commands: add, remove, one-shot
// scrape and scrape settings. Mutations never patch the local copy; they
// re-fetch the whole registry once the backend accepts them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/gateway"
)

// ErrScrapeInFlight is returned when a scrape is triggered for the channel
// already marked in flight.
var ErrScrapeInFlight = errors.New("scrape already in flight for this channel")

// ErrDeclined is returned by Remove when the confirmation was declined.
var ErrDeclined = errors.New("removal not confirmed")

const (
	msgLoadFailed      = "Failed to load channel data"
	msgEmptyID         = "Please enter a channel ID"
	msgAddFailed       = "Failed to add channel"
	msgRemoveFailed    = "Failed to remove channel"
	msgAvailableFailed = "Failed to fetch available channels. Make sure your Telegram credentials are set correctly."
	msgScrapeFailed    = "Failed to start scraping"
	msgSettingsFailed  = "Failed to update scrape settings"
)

// API is the authenticated backend surface the registry needs.
// *gateway.Gateway satisfies it.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Channels maps channel id to its cursor, the last processed message id.
type Channels map[string]int64

// IDs returns the channel ids in sorted order.
func (c Channels) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AvailableChannel is a channel visible to the configured upstream credentials.
type AvailableChannel struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Settings is the per-user scrape configuration.
type Settings struct {
	ScrapeMedia bool `json:"scrape_media"`
}

// Confirmer gates destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Registry is the channel registry client. Its flags (Loading, Fetching,
// ScrapingChannel) describe in-flight work for display; they do not serialize
// requests.
type Registry struct {
	api    API
	logger *zap.Logger

	mu        sync.Mutex
	channels  Channels
	available []AvailableChannel
	settings  Settings
	loading   bool
	fetching  bool
	scraping  string
	feedback  apierr.Feedback
}

// New returns an empty Registry; call List to populate it.
func New(api API, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{api: api, logger: logger, channels: Channels{}}
}

// Channels returns a copy of the local registry.
func (r *Registry) Channels() Channels {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Channels, len(r.channels))
	for k, v := range r.channels {
		out[k] = v
	}
	return out
}

// Available returns the channels from the last FetchAvailable.
func (r *Registry) Available() []AvailableChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AvailableChannel(nil), r.available...)
}

// Settings returns the last fetched or written scrape settings.
func (r *Registry) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Feedback returns the scoped message of the last operation.
func (r *Registry) Feedback() apierr.Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feedback
}

// Loading reports whether a List is in flight.
func (r *Registry) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Fetching reports whether a FetchAvailable is in flight.
func (r *Registry) Fetching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetching
}

// ScrapingChannel returns the channel with a scrape trigger in flight, or "".
func (r *Registry) ScrapingChannel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scraping
}

func (r *Registry) setFeedback(fb apierr.Feedback) {
	r.mu.Lock()
	r.feedback = fb
	r.mu.Unlock()
}

// List fetches the registry and replaces the local copy wholesale.
func (r *Registry) List(ctx context.Context) (Channels, error) {
	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()

	channels, err := r.fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if err != nil {
		r.logger.Warn("failed to list channels", zap.Error(err))
		r.feedback = apierr.Failed(msgLoadFailed)
		return nil, err
	}
	r.channels = channels
	out := make(Channels, len(channels))
	for k, v := range channels {
		out[k] = v
	}
	return out, nil
}

func (r *Registry) fetch(ctx context.Context) (Channels, error) {
	var resp struct {
		Channels Channels `json:"channels"`
	}
	if err := r.api.Get(ctx, "/channels", &resp); err != nil {
		return nil, err
	}
	if resp.Channels == nil {
		resp.Channels = Channels{}
	}
	return resp.Channels, nil
}

// Add asks the backend to track id starting at cursor, then re-lists.
func (r *Registry) Add(ctx context.Context, id string, cursor int64) error {
	id = strings.TrimSpace(id)
	if id == "" {
		r.setFeedback(apierr.Failed(msgEmptyID))
		return apierr.NewValidation(msgEmptyID)
	}
	if cursor < 0 {
		msg := "Cursor must not be negative"
		r.setFeedback(apierr.Failed(msg))
		return apierr.NewValidation(msg)
	}
	r.setFeedback(apierr.Feedback{})

	body := map[string]any{"channel_id": id, "last_message_id": cursor}
	if err := r.api.Post(ctx, "/channels", body, nil); err != nil {
		r.logger.Warn("failed to add channel", zap.String("channel", id), zap.Error(err))
		r.setFeedback(apierr.Failed(msgAddFailed))
		return err
	}
	if _, err := r.List(ctx); err != nil {
		return err
	}
	r.setFeedback(apierr.Succeeded(fmt.Sprintf("Channel %s added successfully", id)))
	return nil
}

// Remove asks c to confirm, then deletes id and re-lists. A declined
// confirmation issues no call and returns ErrDeclined.
func (r *Registry) Remove(ctx context.Context, id string, c Confirmer) error {
	if c == nil || !c.Confirm(fmt.Sprintf("Are you sure you want to remove channel %s?", id)) {
		return ErrDeclined
	}
	r.setFeedback(apierr.Feedback{})

	if err := r.api.Delete(ctx, gateway.Path("channels", id), nil); err != nil {
		r.logger.Warn("failed to remove channel", zap.String("channel", id), zap.Error(err))
		r.setFeedback(apierr.Failed(msgRemoveFailed))
		return err
	}
	if _, err := r.List(ctx); err != nil {
		return err
	}
	r.setFeedback(apierr.Succeeded(fmt.Sprintf("Channel %s removed successfully", id)))
	return nil
}

// FetchAvailable lists the channels the upstream credentials can see.
func (r *Registry) FetchAvailable(ctx context.Context) ([]AvailableChannel, error) {
	r.mu.Lock()
	r.fetching = true
	r.feedback = apierr.Feedback{}
	r.mu.Unlock()

	var resp struct {
		Channels []AvailableChannel `json:"channels"`
	}
	err := r.api.Get(ctx, "/channels-list", &resp)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetching = false
	if err != nil {
		r.logger.Warn("failed to fetch available channels", zap.Error(err))
		r.feedback = apierr.Failed(msgAvailableFailed)
		return nil, err
	}
	r.available = resp.Channels
	return append([]AvailableChannel(nil), resp.Channels...), nil
}

// TriggerScrape fires a one-shot scrape of id. While it is in flight a second
// trigger for the same channel is refused without a call.
func (r *Registry) TriggerScrape(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		r.setFeedback(apierr.Failed(msgEmptyID))
		return apierr.NewValidation(msgEmptyID)
	}
	r.mu.Lock()
	if r.scraping != "" && r.scraping == id {
		r.mu.Unlock()
		return ErrScrapeInFlight
	}
	r.scraping = id
	r.feedback = apierr.Feedback{}
	r.mu.Unlock()

	err := r.api.Post(ctx, gateway.Path("scrape", id), nil, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scraping == id {
		r.scraping = ""
	}
	if err != nil {
		r.logger.Warn("failed to start scraping", zap.String("channel", id), zap.Error(err))
		r.feedback = apierr.Failed(msgScrapeFailed)
		return err
	}
	r.feedback = apierr.Succeeded(fmt.Sprintf("Scraping started for channel %s", id))
	return nil
}

// GetSettings fetches the scrape settings.
func (r *Registry) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	if err := r.api.Get(ctx, "/scrape-settings", &s); err != nil {
		r.logger.Warn("failed to load scrape settings", zap.Error(err))
		r.setFeedback(apierr.Failed(msgLoadFailed))
		return Settings{}, err
	}
	r.mu.Lock()
	r.settings = s
	r.mu.Unlock()
	return s, nil
}

// SetSettings replaces the scrape settings. Last writer wins.
func (r *Registry) SetSettings(ctx context.Context, s Settings) error {
	r.setFeedback(apierr.Feedback{})
	if err := r.api.Post(ctx, "/scrape-settings", s, nil); err != nil {
		r.logger.Warn("failed to update scrape settings", zap.Error(err))
		r.setFeedback(apierr.Failed(msgSettingsFailed))
		return err
	}
	r.mu.Lock()
	r.settings = s
	r.feedback = apierr.Succeeded("Scrape settings updated successfully")
	r.mu.Unlock()
	return nil
}
