package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
)

// Session is what the gateway needs from the session store: the current
// token, read fresh for every call, and teardown.
type Session interface {
	Token() string
	Logout()
}

// Gateway issues authenticated backend calls.
type Gateway struct {
	transport Doer
	session   Session
	logger    *zap.Logger
}

// New returns a Gateway over transport that authenticates as session.
func New(transport Doer, session Session, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{transport: transport, session: session, logger: logger}
}

// Do performs one authenticated call. An AuthFailure tears the session down
// before the error is returned; every other failure passes through untouched.
// Nothing is retried.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	err := g.transport.Do(ctx, Request{
		Method: method,
		Path:   path,
		Body:   body,
		Token:  g.session.Token(),
	}, out)
	if apierr.Is(err, apierr.KindAuth) {
		g.logger.Info("authorization rejected, ending session",
			zap.String("method", method),
			zap.String("path", path))
		g.session.Logout()
	}
	return err
}

// Get performs an authenticated GET.
func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST. A nil body is sent as {}.
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	if body == nil {
		body = struct{}{}
	}
	return g.Do(ctx, http.MethodPost, path, body, out)
}

// Delete performs an authenticated DELETE.
func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodDelete, path, nil, out)
}

// Path joins escaped path segments: Path("channels", "-100 1") == "/channels/-100%201".
func Path(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(s))
	}
	return sb.String()
}
