// Package dataset fetches a channel's scraped message set and derives what is
// shown about it: aggregate stats, a case-insensitive search filter, pages of
// results, and export requests.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/gateway"
)

// ErrStale is returned by Fetch when its response arrived after the view was
// closed or a newer fetch started. The response is discarded.
var ErrStale = errors.New("stale response discarded")

const msgLoadFailed = "Failed to load channel data"

// Format is an export format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON:
		return f, nil
	}
	return "", apierr.NewValidation(fmt.Sprintf("Unsupported export format %q. Use csv or json", s))
}

// ExportResult is the backend's answer to an export request.
type ExportResult struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// API is the authenticated backend surface used here.
type API interface {
	Get(ctx context.Context, path string, out any) error
}

// State is a consistent copy of everything a render target shows.
type State struct {
	ChannelID  string
	Stats      Stats
	Term       string
	Items      []Message // current page
	Matches    int       // size of the filtered set
	Page       int
	TotalPages int
	From, To   int
	Loading    bool
	Exporting  bool
	Feedback   apierr.Feedback
}

// View is the message dataset of one channel.
//
// Each Fetch takes a new generation; a response is applied only if its
// generation is still current when it lands, so Close or a newer Fetch makes
// older in-flight responses stale.
type View struct {
	api       API
	channelID string
	logger    *zap.Logger

	mu        sync.Mutex
	gen       uint64
	closed    bool
	messages  []Message
	filtered  []Message
	stats     Stats
	term      string
	pager     Pager
	loading   bool
	exporting bool
	feedback  apierr.Feedback
}

// NewView returns an empty view of channelID.
func NewView(api API, channelID string, pageSize int, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		api:       api,
		channelID: channelID,
		logger:    logger.With(zap.String("channel", channelID)),
		pager:     NewPager(pageSize),
	}
}

// ChannelID returns the channel this view shows.
func (v *View) ChannelID() string { return v.channelID }

// Fetch replaces the message set with the backend's and recomputes stats.
// On failure the previous data stays and the scoped error is set.
func (v *View) Fetch(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrStale
	}
	v.gen++
	gen := v.gen
	v.loading = true
	v.feedback = apierr.Feedback{}
	v.mu.Unlock()

	var resp struct {
		Messages []Message `json:"messages"`
	}
	err := v.api.Get(ctx, gateway.Path("channel-data", v.channelID), &resp)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen || v.closed {
		v.logger.Debug("discarding stale channel data", zap.Uint64("gen", gen))
		return ErrStale
	}
	v.loading = false
	if err != nil {
		v.logger.Warn("failed to load channel data", zap.Error(err))
		v.feedback = apierr.Failed(msgLoadFailed)
		return err
	}

	v.messages = resp.Messages
	if v.messages == nil {
		v.messages = []Message{}
	}
	v.stats = ComputeStats(v.messages)
	v.filtered = Filter(v.messages, v.term)
	v.pager.Reset(len(v.filtered))
	return nil
}

// Close abandons the view. Responses still in flight are discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.gen++
	v.loading = false
}

// Search filters the set by term and returns to page 1 when the term changes.
func (v *View) Search(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if term == v.term {
		return
	}
	v.term = term
	v.filtered = Filter(v.messages, term)
	v.pager.Reset(len(v.filtered))
}

// Next moves to the next page; no-op on the last page.
func (v *View) Next() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.Next()
}

// Prev moves to the previous page; no-op on page 1.
func (v *View) Prev() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.Prev()
}

// Goto moves to page n, clamped to the valid range.
func (v *View) Goto(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pager.Goto(n)
}

// Messages returns the full fetched set.
func (v *View) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Message(nil), v.messages...)
}

// Filtered returns the set matching the current search term.
func (v *View) Filtered() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Message(nil), v.filtered...)
}

// PageItems returns the messages on the current page.
func (v *View) PageItems() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	lo, hi := v.pager.Bounds()
	return append([]Message(nil), v.filtered[lo:hi]...)
}

// Stats returns the stats of the full set.
func (v *View) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Page returns the current page and the page count.
func (v *View) Page() (page, total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pager.Page, v.pager.TotalPages()
}

// Loading reports whether a fetch is in flight.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Exporting reports whether an export is in flight. It is a display hint;
// Export does not refuse concurrent calls.
func (v *View) Exporting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exporting
}

// Feedback returns the scoped message of the last operation.
func (v *View) Feedback() apierr.Feedback {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.feedback
}

// State returns a consistent copy of the view.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	lo, hi := v.pager.Bounds()
	from, to := v.pager.Range()
	return State{
		ChannelID:  v.channelID,
		Stats:      v.stats,
		Term:       v.term,
		Items:      append([]Message(nil), v.filtered[lo:hi]...),
		Matches:    len(v.filtered),
		Page:       v.pager.Page,
		TotalPages: v.pager.TotalPages(),
		From:       from,
		To:         to,
		Loading:    v.loading,
		Exporting:  v.exporting,
		Feedback:   v.feedback,
	}
}

// Export asks the backend to export the channel in format. Every call issues
// exactly one request.
func (v *View) Export(ctx context.Context, format Format) (ExportResult, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		v.mu.Lock()
		v.feedback = apierr.Failed(apierr.Detail(err, ""))
		v.mu.Unlock()
		return ExportResult{}, err
	}

	v.mu.Lock()
	v.exporting = true
	v.feedback = apierr.Feedback{}
	v.mu.Unlock()

	var res ExportResult
	err = v.api.Get(ctx, gateway.Path("export-data", v.channelID, string(format)), &res)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.exporting = false
	if err != nil {
		v.logger.Warn("export failed", zap.String("format", string(format)), zap.Error(err))
		v.feedback = apierr.Failed(fmt.Sprintf("Failed to export data as %s", format))
		return ExportResult{}, err
	}
	v.feedback = apierr.Succeeded(fmt.Sprintf("Data exported successfully in %s format", strings.ToUpper(string(format))))
	return res, nil
}
