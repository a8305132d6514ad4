// Package credentials reads and writes the upstream Telegram API identity the
// backend scrapes with.
package credentials

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
)

var (
	apiIDPattern = regexp.MustCompile(`^\d+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

const (
	msgRequired      = "All fields are required"
	msgAPIID         = "API ID must be a number"
	msgPhone         = "Phone number is invalid. Please include country code (e.g., +1234567890)"
	msgFetchFailed   = "Failed to fetch Telegram credentials"
	msgSaveFailed    = "Failed to save Telegram credentials"
	msgSaveSucceeded = "Telegram credentials saved successfully"
)

// Credentials is the upstream identity.
type Credentials struct {
	APIID   int64  `json:"api_id"`
	APIHash string `json:"api_hash"`
	Phone   string `json:"phone"`
}

// API is the authenticated backend surface used here.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Validate checks raw form input and builds Credentials. Failures are
// ValidationFailure errors carrying the message to show.
func Validate(apiID, apiHash, phone string) (Credentials, error) {
	apiID, apiHash, phone = strings.TrimSpace(apiID), strings.TrimSpace(apiHash), strings.TrimSpace(phone)
	if apiID == "" || apiHash == "" || phone == "" {
		return Credentials{}, apierr.NewValidation(msgRequired)
	}
	if !apiIDPattern.MatchString(apiID) {
		return Credentials{}, apierr.NewValidation(msgAPIID)
	}
	id, err := strconv.ParseInt(apiID, 10, 64)
	if err != nil {
		return Credentials{}, apierr.NewValidation(msgAPIID)
	}
	if !phonePattern.MatchString(phone) {
		return Credentials{}, apierr.NewValidation(msgPhone)
	}
	return Credentials{APIID: id, APIHash: apiHash, Phone: phone}, nil
}

// Client talks to /telegram-credentials.
type Client struct {
	api    API
	logger *zap.Logger
}

// New returns a Client.
func New(api API, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, logger: logger}
}

// Get returns the stored credentials. ok is false when none are set, which
// the backend reports as 404 and is not an error here.
func (c *Client) Get(ctx context.Context) (creds Credentials, ok bool, fb apierr.Feedback, err error) {
	err = c.api.Get(ctx, "/telegram-credentials", &creds)
	if apierr.StatusOf(err) == http.StatusNotFound && apierr.Is(err, apierr.KindRemote) {
		return Credentials{}, false, apierr.Feedback{}, nil
	}
	if err != nil {
		c.logger.Warn("failed to fetch telegram credentials", zap.Error(err))
		return Credentials{}, false, apierr.Failed(msgFetchFailed), err
	}
	return creds, true, apierr.Feedback{}, nil
}

// Save stores creds.
func (c *Client) Save(ctx context.Context, creds Credentials) (apierr.Feedback, error) {
	if err := c.api.Post(ctx, "/telegram-credentials", creds, nil); err != nil {
		c.logger.Warn("failed to save telegram credentials", zap.Error(err))
		return apierr.Failed(msgSaveFailed), err
	}
	return apierr.Succeeded(msgSaveSucceeded), nil
}

// Masked returns creds with the hash obscured for display.
func Masked(creds Credentials) Credentials {
	h := creds.APIHash
	if len(h) > 4 {
		h = h[:4] + strings.Repeat("*", len(h)-4)
	} else {
		h = strings.Repeat("*", len(h))
	}
	creds.APIHash = h
	return creds
}
