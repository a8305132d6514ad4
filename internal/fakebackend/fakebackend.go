// Package fakebackend is an in-memory stand-in for the scraping service's REST
// API, used by tests across the module. It issues real HS256 JWTs, keeps one
// record per account, and records every request it serves.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Message mirrors one row of the backend's per-channel message table.
type Message struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	Date      string `json:"date"`
	SenderID  *int64 `json:"sender_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	MediaPath string `json:"media_path,omitempty"`
	ReplyTo   *int64 `json:"reply_to,omitempty"`
}

// Channel is an entry of GET /channels-list.
type Channel struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Credentials are the upstream Telegram credentials of an account.
type Credentials struct {
	APIID   int64  `json:"api_id"`
	APIHash string `json:"api_hash"`
	Phone   string `json:"phone"`
}

// Call is one served request.
type Call struct {
	Method string
	Path   string
	Auth   string
}

type account struct {
	id          string
	email       string
	fullName    string
	password    string
	channels    map[string]int64
	scrapeMedia bool
	creds       *Credentials
	continuous  bool
}

type failure struct {
	method, path string
	status       int
	detail       string
}

// Server is the fake backend. Use New; the zero value is not usable.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	statusEndpoint bool
	available      []Channel
	secret         []byte
	accounts       map[string]*account
	messages       map[string][]Message
	calls          []Call
	failures       []failure
	blocks         map[string]chan struct{}
}

// New starts a fake backend. It is closed by t's cleanup when t is non-nil.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		secret:   []byte(uuid.NewString()),
		accounts: make(map[string]*account),
		messages: make(map[string][]Message),
		blocks:   make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(s.routes())
	if t != nil {
		t.Cleanup(s.Close)
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /google-login", s.handleGoogleLogin)
	mux.HandleFunc("POST /reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /set-new-password", s.handleSetNewPassword)
	mux.HandleFunc("GET /me", s.authed(s.handleMe))
	mux.HandleFunc("GET /telegram-credentials", s.authed(s.handleGetCredentials))
	mux.HandleFunc("POST /telegram-credentials", s.authed(s.handleSetCredentials))
	mux.HandleFunc("GET /channels", s.authed(s.handleListChannels))
	mux.HandleFunc("POST /channels", s.authed(s.handleAddChannel))
	mux.HandleFunc("DELETE /channels/{id}", s.authed(s.handleRemoveChannel))
	mux.HandleFunc("GET /channels-list", s.authed(s.handleAvailable))
	mux.HandleFunc("GET /scrape-settings", s.authed(s.handleGetSettings))
	mux.HandleFunc("POST /scrape-settings", s.authed(s.handleSetSettings))
	mux.HandleFunc("POST /scrape/{id}", s.authed(s.handleScrape))
	mux.HandleFunc("POST /continuous-scrape/start", s.authed(s.handleContinuous(true)))
	mux.HandleFunc("POST /continuous-scrape/stop", s.authed(s.handleContinuous(false)))
	mux.HandleFunc("GET /continuous-scrape/status", s.authed(s.handleContinuousStatus))
	mux.HandleFunc("GET /channel-data/{id}", s.authed(s.handleChannelData))
	mux.HandleFunc("GET /export-data/{id}/{format}", s.authed(s.handleExport))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.EscapedPath(), Auth: r.Header.Get("Authorization")})
		f, failed := s.takeFailureLocked(r.Method, r.URL.EscapedPath())
		block := s.blocks[r.Method+" "+r.URL.EscapedPath()]
		s.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if failed {
			writeDetail(w, f.status, f.detail)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// AddUser creates an account directly.
func (s *Server) AddUser(email, password, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = newAccount(email, password, fullName)
}

func newAccount(email, password, fullName string) *account {
	return &account{
		id:          uuid.NewString(),
		email:       email,
		fullName:    fullName,
		password:    password,
		channels:    make(map[string]int64),
		scrapeMedia: true,
	}
}

// IssueToken signs a token for email that expires after ttl.
func (s *Server) IssueToken(email string, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(jwt.MapClaims{"sub": email}, ttl)
}

func (s *Server) issueLocked(claims jwt.MapClaims, ttl time.Duration) string {
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(ttl))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakebackend: sign token: %v", err))
	}
	return tok
}

// RotateSecret invalidates every token issued so far.
func (s *Server) RotateSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = []byte(uuid.NewString())
}

// EnableStatusEndpoint turns on GET /continuous-scrape/status. It is off by
// default, matching the real service.
func (s *Server) EnableStatusEndpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusEndpoint = true
}

// SetAvailable sets what GET /channels-list returns once credentials are set.
func (s *Server) SetAvailable(channels []Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = append([]Channel(nil), channels...)
}

// SetChannels replaces an account's registry.
func (s *Server) SetChannels(email string, channels map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[email]
	a.channels = make(map[string]int64, len(channels))
	for k, v := range channels {
		a.channels[k] = v
	}
}

// SetCredentials stores upstream credentials for an account.
func (s *Server) SetCredentials(email string, c Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email].creds = &c
}

// SetContinuous sets the backend's continuous-scrape flag for an account.
func (s *Server) SetContinuous(email string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email].continuous = running
}

// Continuous reports the backend's continuous-scrape flag for an account.
func (s *Server) Continuous(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[email].continuous
}

// SeedMessages sets the message set for a channel.
func (s *Server) SeedMessages(channelID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append([]Message(nil), msgs...)
}

// FailNext makes the next request to method+path (escaped) answer status with
// a {"detail": detail} body instead of being served.
func (s *Server) FailNext(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, detail: detail})
}

func (s *Server) takeFailureLocked(method, path string) (failure, bool) {
	for i, f := range s.failures {
		if f.method == method && f.path == path {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f, true
		}
	}
	return failure{}, false
}

// Block holds requests to method+path until the returned func is called.
func (s *Server) Block(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.blocks[method+" "+path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.blocks, method+" "+path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns every request served so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// authed resolves the bearer token to an account, answering 401 like the
// real service when it cannot.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s.mu.Lock()
		secret := s.secret
		s.mu.Unlock()

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		email, _ := claims.GetSubject()

		s.mu.Lock()
		a := s.accounts[email]
		s.mu.Unlock()
		if a == nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r, a)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Email == "" || body.Password == "" {
		writeValidation(w, "field required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[body.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	a := newAccount(body.Email, body.Password, body.FullName)
	s.accounts[body.Email] = a
	writeJSON(w, http.StatusOK, profile(a))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[body.Email]
	if a == nil || a.password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issueLocked(jwt.MapClaims{"sub": a.email}, 30*time.Minute),
		"token_type":   "bearer",
	})
}

// handleGoogleLogin accepts identity tokens of the form "google:<email>".
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &body) {
		return
	}
	email, ok := strings.CutPrefix(body.Token, "google:")
	if !ok || email == "" {
		writeDetail(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts[email] == nil {
		s.accounts[email] = newAccount(email, uuid.NewString(), "")
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issueLocked(jwt.MapClaims{"sub": email}, 30*time.Minute),
		"token_type":   "bearer",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts[body.Email] == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "If your email is registered, a password reset link will be sent",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset requested",
		"token":   s.issueLocked(jwt.MapClaims{"sub": body.Email, "reset": true}, time.Hour),
	})
}

func (s *Server) handleSetNewPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(body.Token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims["reset"] != true {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	email, _ := claims.GetSubject()
	a := s.accounts[email]
	if a == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	a.password = body.Password
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, profile(a))
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.creds == nil {
		writeDetail(w, http.StatusNotFound, "Telegram credentials not set")
		return
	}
	writeJSON(w, http.StatusOK, a.creds)
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request, a *account) {
	var body Credentials
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.creds = &body
	writeJSON(w, http.StatusOK, map[string]string{"message": "Telegram credentials set successfully"})
}

func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"channels": a.channels})
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request, a *account) {
	var body struct {
		ChannelID     string `json:"channel_id"`
		LastMessageID int64  `json:"last_message_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.ChannelID == "" {
		writeValidation(w, "field required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.channels[body.ChannelID] = body.LastMessageID
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Channel %s added successfully", body.ChannelID),
	})
}

func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request, a *account) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := a.channels[id]; !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Channel %s not found", id))
		return
	}
	delete(a.channels, id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Channel %s removed successfully", id),
	})
}

func (s *Server) handleAvailable(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.creds == nil {
		writeDetail(w, http.StatusBadRequest, "Telegram credentials not set")
		return
	}
	channels := s.available
	if channels == nil {
		channels = []Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"scrape_media": a.scrapeMedia})
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request, a *account) {
	var body struct {
		ScrapeMedia bool `json:"scrape_media"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.scrapeMedia = body.ScrapeMedia
	writeJSON(w, http.StatusOK, map[string]string{"message": "Scrape settings updated successfully"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request, a *account) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.creds == nil {
		writeDetail(w, http.StatusBadRequest, "Telegram credentials not set")
		return
	}
	if _, ok := a.channels[id]; !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Channel %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Scraping started for channel %s", id),
	})
}

func (s *Server) handleContinuous(running bool) func(http.ResponseWriter, *http.Request, *account) {
	return func(w http.ResponseWriter, _ *http.Request, a *account) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a.continuous = running
		msg := "Continuous scraping stopped"
		if running {
			msg = "Continuous scraping started"
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": msg})
	}
}

func (s *Server) handleContinuousStatus(w http.ResponseWriter, _ *http.Request, a *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.statusEndpoint {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": a.continuous})
}

func (s *Server) handleChannelData(w http.ResponseWriter, r *http.Request, _ *account) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[id]
	if msgs == nil {
		msgs = []Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, _ *account) {
	id, format := r.PathValue("id"), r.PathValue("format")
	switch format {
	case "csv", "json":
	default:
		writeDetail(w, http.StatusBadRequest, "Invalid format. Use 'csv' or 'json'")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": strings.ToUpper(format) + " export completed",
		"path":    fmt.Sprintf("exports/%s_messages.%s", id, format),
	})
}

func profile(a *account) map[string]string {
	return map[string]string{"id": a.id, "email": a.email, "full_name": a.fullName}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, "invalid JSON body")
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body"}, "msg": msg}},
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
