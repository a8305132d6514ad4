// Package session owns the bearer token and the derived authentication state.
// It is the single writer of the persisted token; every other reader asks the
// Store for it per request.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/gateway"
	"github.com/fakeyudi/tgdeck/internal/storage"
)

// ErrNoToken is returned by operations that need a token when none is held.
var ErrNoToken = errors.New("not logged in")

const (
	loginFailed    = "Login failed. Please check your credentials."
	registerFailed = "Registration failed. Please try again."
	resetFailed    = "Password reset request failed. Please try again."
	setPassFailed  = "Failed to set new password. The link may have expired."
)

// Store is the session state machine. The zero value is not usable; call New.
//
// Concurrent Login calls are not sequenced: whichever token response arrives
// last becomes the session. Every teardown and every new token bumps epoch, so
// a profile fetch that started under an older epoch is discarded when it
// lands.
type Store struct {
	kv        storage.Store
	transport gateway.Doer
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	token     string
	user      *UserProfile
	loading   bool
	expiresAt time.Time
	epoch     uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns a Store in the Uninitialized state. transport is used without a
// Gateway because the auth endpoints are unauthenticated.
func New(kv storage.Store, transport gateway.Doer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:        kv,
		transport: transport,
		logger:    logger,
		state:     Uninitialized,
		subs:      make(map[int]func(Snapshot)),
	}
}

// Token returns the current bearer token, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         s.state,
		Token:         s.token,
		Authenticated: s.state == Authenticated,
		Loading:       s.loading,
		ExpiresAt:     s.expiresAt,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Subscribe registers fn to receive every published snapshot. fn runs outside
// the store's lock and may call back into the Store. The returned func
// unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Hydrate reads the persisted token. With a token it fetches the profile and
// lands in Authenticated, or tears down on any failure. Without one it lands
// in Unauthenticated.
func (s *Store) Hydrate(ctx context.Context) Snapshot {
	tok, ok, err := s.kv.Get(TokenKey)
	if err != nil {
		s.logger.Warn("failed to read stored token", zap.Error(err))
	}
	if err != nil || !ok || tok == "" {
		s.mu.Lock()
		s.clearLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.publish(snap)
		return snap
	}

	s.mu.Lock()
	epoch := s.adoptLocked(tok)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	user, err := s.fetchProfile(ctx, tok)
	return s.applyProfile(epoch, user, err, true)
}

// Login exchanges credentials for a token. The verdict is success as soon as a
// token is obtained and persisted; the profile fetch that follows decides
// whether the state reaches Authenticated.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	var resp tokenResponse
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   map[string]string{"email": email, "password": password},
	}, &resp)
	return s.finishLogin(ctx, resp, err, loginFailed)
}

// LoginWithGoogle exchanges a Google identity token for a session token.
func (s *Store) LoginWithGoogle(ctx context.Context, idToken string) Result {
	var resp tokenResponse
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/google-login",
		Body:   map[string]string{"token": idToken},
	}, &resp)
	return s.finishLogin(ctx, resp, err, loginFailed)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Store) finishLogin(ctx context.Context, resp tokenResponse, err error, fallback string) Result {
	if err != nil {
		s.logger.Info("login rejected", zap.Error(err))
		return Result{Message: apierr.Detail(err, fallback)}
	}
	if resp.AccessToken == "" {
		return Result{Message: fallback}
	}

	// The stored and the adopted token change under one lock.
	s.mu.Lock()
	if err := s.kv.Set(TokenKey, resp.AccessToken); err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to persist token", zap.Error(err))
		return Result{Message: "Login succeeded but the session could not be saved: " + err.Error()}
	}
	epoch := s.adoptLocked(resp.AccessToken)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	user, err := s.fetchProfile(ctx, resp.AccessToken)
	s.applyProfile(epoch, user, err, false)
	return Result{Success: true}
}

// Register creates an account. It does not log in.
func (s *Store) Register(ctx context.Context, email, password, fullName string) Result {
	var user UserProfile
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/register",
		Body: map[string]string{
			"email":     email,
			"password":  password,
			"full_name": fullName,
		},
	}, &user)
	if err != nil {
		return Result{Message: apierr.Detail(err, registerFailed)}
	}
	return Result{Success: true, Data: user}
}

// ResetPassword requests a password reset for email. Data carries the reset
// token when the backend hands it back directly.
func (s *Store) ResetPassword(ctx context.Context, email string) Result {
	var resp struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/reset-password",
		Body:   map[string]string{"email": email},
	}, &resp)
	if err != nil {
		return Result{Message: apierr.Detail(err, resetFailed)}
	}
	res := Result{Success: true, Message: resp.Message}
	if resp.Token != "" {
		res.Data = resp.Token
	}
	return res
}

// SetNewPassword completes the reset flow with the token from ResetPassword.
func (s *Store) SetNewPassword(ctx context.Context, resetToken, password string) Result {
	var resp struct {
		Message string `json:"message"`
	}
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/set-new-password",
		Body:   map[string]string{"token": resetToken, "password": password},
	}, &resp)
	if err != nil {
		return Result{Message: apierr.Detail(err, setPassFailed)}
	}
	return Result{Success: true, Message: resp.Message}
}

// RefreshProfile re-fetches the profile for the current token. An AuthFailure
// tears the session down; other failures leave it as it was.
func (s *Store) RefreshProfile(ctx context.Context) error {
	s.mu.Lock()
	tok, epoch := s.token, s.epoch
	s.mu.Unlock()
	if tok == "" {
		return ErrNoToken
	}
	user, err := s.fetchProfile(ctx, tok)
	s.applyProfile(epoch, user, err, false)
	return err
}

// Logout tears the session down: storage key removed, token and user cleared.
// It makes no backend call and is a no-op when already logged out.
func (s *Store) Logout() {
	s.mu.Lock()
	if s.state == Unauthenticated && s.token == "" {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Resync reconciles with storage after another process changed it: a vanished
// token tears down, a different token is hydrated.
func (s *Store) Resync(ctx context.Context) Snapshot {
	tok, ok, err := s.kv.Get(TokenKey)
	if err != nil {
		s.logger.Warn("failed to read stored token", zap.Error(err))
		return s.Snapshot()
	}

	current := s.Token()
	switch {
	case (!ok || tok == "") && current != "":
		s.logger.Info("token removed externally, ending session")
		s.Logout()
		return s.Snapshot()
	case ok && tok != "" && tok != current:
		return s.Hydrate(ctx)
	default:
		return s.Snapshot()
	}
}

func (s *Store) fetchProfile(ctx context.Context, tok string) (*UserProfile, error) {
	var user UserProfile
	err := s.transport.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/me",
		Token:  tok,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// applyProfile lands a profile fetch that started under epoch. Stale results
// are dropped. teardownAlways makes any failure end the session, as hydration
// requires; otherwise only an AuthFailure does.
func (s *Store) applyProfile(epoch uint64, user *UserProfile, err error, teardownAlways bool) Snapshot {
	s.mu.Lock()
	if epoch != s.epoch {
		s.logger.Debug("discarding stale profile response")
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	switch {
	case err == nil:
		s.user = user
		s.state = Authenticated
		s.loading = false
	case teardownAlways || apierr.Is(err, apierr.KindAuth):
		s.logger.Info("profile fetch failed, ending session", zap.Error(err))
		s.teardownLocked()
	default:
		s.logger.Warn("profile fetch failed", zap.Error(err))
		s.loading = false
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	return snap
}

// adoptLocked installs tok as the current token and returns the new epoch.
func (s *Store) adoptLocked(tok string) uint64 {
	s.epoch++
	s.token = tok
	s.user = nil
	s.state = Hydrating
	s.loading = true
	s.expiresAt = expiry(tok)
	return s.epoch
}

func (s *Store) teardownLocked() {
	if err := s.kv.Remove(TokenKey); err != nil {
		s.logger.Error("failed to remove stored token", zap.Error(err))
	}
	s.epoch++
	s.clearLocked()
}

func (s *Store) clearLocked() {
	s.token = ""
	s.user = nil
	s.state = Unauthenticated
	s.loading = false
	s.expiresAt = time.Time{}
}

// expiry reads the exp claim without verifying the signature; the backend is
// the only party that can verify it.
func expiry(tok string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
