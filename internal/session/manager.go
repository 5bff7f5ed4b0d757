package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskman/internal/logging"
	"taskman/internal/notify"
	"taskman/internal/service"
)

const (
	// LandingPath is where a notified logout redirects.
	LandingPath = "/"

	// DefaultRedirectDelay lets the logout notification render first.
	DefaultRedirectDelay = 800 * time.Millisecond
)

// ErrNoSession is returned when an operation needs a token and there is none.
var ErrNoSession = errors.New("not logged in")

// State is a snapshot of the session.
// User != nil implies Token != "".
type State struct {
	Token   string               `json:"-" yaml:"-"`
	User    *service.UserProfile `json:"user" yaml:"user"`
	Loading bool                 `json:"loading" yaml:"loading"`
}

// Authenticated reports whether the session has a token and a profile.
func (s State) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Notify(message string, kind notify.Kind)
}

// Manager owns the in-memory session, mirrors it to a Store and verifies
// it against the backend. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    Store
	client   service.ProfileClient
	notifier Notifier
	logger   *logging.Logger

	redirect      func(path string)
	redirectDelay time.Duration
	redirectTimer *time.Timer

	state    State
	loaded   bool
	verifies map[string]*verifyCall // token -> verification pass
}

type verifyCall struct {
	done chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the notification target.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRedirect sets the hook invoked after a notified logout, delay later.
func WithRedirect(fn func(path string), delay time.Duration) Option {
	return func(m *Manager) {
		m.redirect = fn
		m.redirectDelay = delay
	}
}

// NewManager creates a Manager. Nothing is read from the store until Load
// or Initialize is called.
func NewManager(store Store, client service.ProfileClient, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		client:        client,
		logger:        logging.NopLogger(),
		redirectDelay: DefaultRedirectDelay,
		verifies:      make(map[string]*verifyCall),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.New(nil)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// State returns a copy of the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Load reads the persisted session into memory without any network call.
// Only the first call reads the store.
func (m *Manager) Load() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	return m.snapshotLocked()
}

func (m *Manager) loadLocked() {
	if m.loaded {
		return
	}
	m.loaded = true

	token, ok, err := m.store.Get(KeyToken)
	if err != nil {
		m.logger.Warn("failed to read stored token", "error", err.Error())
		return
	}
	if !ok || token == "" {
		return
	}
	m.state.Token = token

	raw, ok, err := m.store.Get(KeyUser)
	if err != nil {
		m.logger.Warn("failed to read stored profile", "error", err.Error())
		return
	}
	if !ok {
		return
	}
	var user service.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn("ignoring corrupt stored profile", "error", err.Error())
		return
	}
	m.state.User = &user
}

// Initialize loads the persisted session and verifies its token against
// the backend profile endpoint. A 401 clears the session silently; any
// other failure keeps the loaded state. Each token value is verified at
// most once: concurrent callers wait for the pass already in flight. A
// waiter whose ctx ends first returns the current state, which still has
// Loading set while that pass runs.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.Lock()
	m.loadLocked()
	token := m.state.Token
	if token == "" {
		m.state.Loading = false
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s
	}
	if call, ok := m.verifies[token]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
		}
		return m.State()
	}
	call := &verifyCall{done: make(chan struct{})}
	m.verifies[token] = call
	m.state.Loading = true
	m.mu.Unlock()

	m.logger.Debug("verifying session")
	user, err := m.client.GetProfile(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(call.done)

	// A login or logout during the call owns the state now.
	if m.state.Token == token {
		switch {
		case err == nil:
			m.replaceUserLocked(user)
			m.logger.Info("session verified", "user_id", user.ID)
		case service.IsUnauthenticated(err):
			m.logger.Info("stored session rejected, clearing")
			m.clearLocked()
		default:
			m.logger.Warn("session verification failed, keeping cached session", "error", err.Error())
		}
	}
	m.state.Loading = false
	return m.snapshotLocked()
}

// Login stores token and user and makes them the current session. It does
// not call the backend: the caller already obtained them from it.
func (m *Manager) Login(token string, user service.UserProfile) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	m.mu.Lock()
	if err := m.store.Set(KeyToken, token); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := m.store.Set(KeyUser, string(data)); err != nil {
		if delErr := m.store.Delete(KeyToken); delErr != nil {
			m.logger.Error("failed to roll back stored token", "key", KeyToken, "error", delErr.Error())
		}
		m.mu.Unlock()
		return fmt.Errorf("failed to save session: %w", err)
	}
	m.stopRedirectLocked()
	m.loaded = true
	m.state = State{Token: token, User: &user}

	// A token fresh from the backend needs no verification pass.
	done := make(chan struct{})
	close(done)
	m.verifies[token] = &verifyCall{done: done}
	m.mu.Unlock()

	m.logger.Info("logged in", "user_id", user.ID)
	m.notifier.Notify("Login successful!", notify.KindSuccess)
	return nil
}

// Logout clears the persisted and in-memory session. With notify set it
// shows a notification and, if a redirect hook is configured, redirects
// to LandingPath after the redirect delay. The returned error only
// reports a failure to clear the store; the in-memory session is always
// cleared.
func (m *Manager) Logout(notifyUser bool) error {
	m.mu.Lock()
	m.loaded = true
	err := m.clearLocked()
	if notifyUser && m.redirect != nil {
		m.stopRedirectLocked()
		redirect := m.redirect
		m.redirectTimer = time.AfterFunc(m.redirectDelay, func() { redirect(LandingPath) })
	}
	m.mu.Unlock()

	m.logger.Info("logged out", "notify", notifyUser)
	if notifyUser {
		m.notifier.Notify("Logged out successfully!", notify.KindInfo)
	}
	return err
}

// clearLocked resets the state and removes both keys from the store.
func (m *Manager) clearLocked() error {
	m.state.Token = ""
	m.state.User = nil
	m.state.Loading = false
	var errs []error
	for _, key := range []string{KeyToken, KeyUser} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Error("failed to clear stored session", "key", key, "error", err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// replaceUserLocked swaps in a freshly fetched profile and persists it.
// Profiles are never merged field by field.
func (m *Manager) replaceUserLocked(user service.UserProfile) {
	m.state.User = &user
	data, err := json.Marshal(user)
	if err != nil {
		m.logger.Error("failed to encode profile", "error", err.Error())
		return
	}
	if err := m.store.Set(KeyUser, string(data)); err != nil {
		m.logger.Error("failed to persist profile", "error", err.Error())
	}
}

// RefreshProfile re-fetches the profile for the current token. Without a
// token it does nothing. A 401 logs out silently and returns
// service.ErrUnauthenticated; other failures keep the cached profile, show
// a warning and return the error.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	token := m.State().Token
	if token == "" {
		return nil
	}

	user, err := m.client.GetProfile(ctx, token)
	if err != nil {
		return m.handleProfileError(token, err, "Could not refresh your profile. Check your connection.")
	}

	m.mu.Lock()
	if m.state.Token == token {
		m.replaceUserLocked(user)
	}
	m.mu.Unlock()
	return nil
}

// UpdateProfile saves name and bio and replaces the cached profile with
// the backend's copy.
func (m *Manager) UpdateProfile(ctx context.Context, update service.ProfileUpdate) (service.UserProfile, error) {
	token := m.State().Token
	if token == "" {
		return service.UserProfile{}, ErrNoSession
	}

	user, err := m.client.UpdateProfile(ctx, token, update)
	if err != nil {
		if service.KindOf(err) == service.KindValidation {
			return service.UserProfile{}, err
		}
		return service.UserProfile{}, m.handleProfileError(token, err, "Could not update your profile. Check your connection.")
	}

	m.mu.Lock()
	if m.state.Token == token {
		m.replaceUserLocked(user)
	}
	m.mu.Unlock()

	m.notifier.Notify("Profile updated successfully!", notify.KindSuccess)
	return user, nil
}

func (m *Manager) handleProfileError(token string, err error, warning string) error {
	if service.IsUnauthenticated(err) {
		m.mu.Lock()
		if m.state.Token == token {
			m.clearLocked()
		}
		m.mu.Unlock()
		m.logger.Info("session expired during profile call")
		return err
	}
	m.logger.Warn("profile call failed, keeping cached session", "error", err.Error())
	m.notifier.Notify(warning, notify.KindWarning)
	return err
}

// ShowNotification forwards a message to the notification channel.
func (m *Manager) ShowNotification(message string, kind notify.Kind) {
	m.notifier.Notify(message, kind)
}

// TokenClaims decodes the registered claims of the current token without
// verifying its signature. Claims are for display only; the backend's 401
// is the only authoritative expiry signal.
func (m *Manager) TokenClaims() (*jwt.RegisteredClaims, error) {
	token := m.State().Token
	if token == "" {
		return nil, ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("token is not a JWT: %w", err)
	}
	return claims, nil
}

// Close cancels a pending logout redirect.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRedirectLocked()
}

func (m *Manager) stopRedirectLocked() {
	if m.redirectTimer != nil {
		m.redirectTimer.Stop()
		m.redirectTimer = nil
	}
}
