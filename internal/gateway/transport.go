// Package gateway performs backend REST calls. Transport is the bare JSON
// client; Gateway wraps it with the session's bearer token and tears the
// session down when the backend answers 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Request describes one backend call.
type Request struct {
	Method string
	Path   string // absolute path, e.g. "/channels"; segments already escaped
	Body   any    // JSON-encoded when non-nil
	Token  string // bearer token; empty for unauthenticated calls
}

// Doer executes a Request and decodes a 2xx JSON body into out (may be nil).
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

// Transport is an HTTP JSON client for the backend.
type Transport struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewTransport returns a Transport rooted at baseURL. A nil client uses a
// 30s-timeout default; a nil logger disables logging.
func NewTransport(baseURL string, client *http.Client, logger *zap.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// BaseURL returns the backend root the transport talks to.
func (t *Transport) BaseURL() string { return t.baseURL }

// Do performs req. Failures are always *apierr.Error: NetworkFailure when no
// response arrived, AuthFailure on 401, RemoteFailure on any other non-2xx
// status or an undecodable 2xx body.
func (t *Transport) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		t.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Duration("dur", duration),
			zap.Error(err))
		return apierr.NewNetwork(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close response body", zap.Error(closeErr))
		}
	}()

	t.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := ExtractDetail(raw)
		if resp.StatusCode == http.StatusUnauthorized {
			return apierr.NewAuth(resp.StatusCode, detail)
		}
		return apierr.NewRemote(resp.StatusCode, detail)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.NewNetwork(fmt.Errorf("read response: %w", err))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apierr.Error{
			Kind:    apierr.KindRemote,
			Status:  resp.StatusCode,
			Message: "malformed response from backend",
			Err:     err,
		}
	}
	return nil
}

// ExtractDetail pulls the conventional "detail" field out of an error body.
// FastAPI validation errors carry a list of {msg} objects; those are joined.
// Returns "" when the body carries no usable detail.
func ExtractDetail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
