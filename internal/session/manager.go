package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
)

var (
	// ErrInvalidCredentials is returned by authenticators that reject credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationFailed is returned by Login on any failure.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNoRefreshToken is returned by Refresh when nothing can be exchanged.
	ErrNoRefreshToken = errors.New("no refresh token")
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgLoginUnavailable   = "Login failed, please try again"
)

// Authenticator is the authentication backend.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error)
}

// TokenStore is the durable token storage used by the manager.
type TokenStore interface {
	Get(ctx context.Context) (string, bool)
	GetRefresh(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, kind domain.TokenKind) error
	Remove(ctx context.Context) error
	IsExpired(token string) bool
	ExtractUser(token string) (*domain.User, bool)
}

// Manager owns the session state. Initialize, Login, Refresh and Logout are
// serialized; readers always see a whole State.
type Manager struct {
	store      TokenStore
	authn      Authenticator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	once  sync.Once
	ready chan struct{}
	ops   sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewManager builds a manager in the Initial state. dispatcher may be nil.
func NewManager(store TokenStore, authn Authenticator, dispatcher events.Dispatcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		authn:      authn,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		ready:      make(chan struct{}),
		state:      Initial(),
	}
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready is closed once Initialize has settled.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Initialize restores the session from storage. Only the first call has any
// effect; later calls return immediately.
func (m *Manager) Initialize(ctx context.Context) {
	m.once.Do(func() {
		m.ops.Lock()
		defer m.ops.Unlock()
		defer close(m.ready)

		next := m.restore(ctx)
		m.swap(next)
		if next.IsAuthenticated {
			m.publish(ctx, events.EventSessionAuthenticated, next.User, "restored")
		}
		m.logger.Info("session initialized", zap.Bool("authenticated", next.IsAuthenticated))
	})
}

func (m *Manager) restore(ctx context.Context) State {
	token, hasToken := m.store.Get(ctx)
	refresh, hasRefresh := m.store.GetRefresh(ctx)

	if hasToken && !m.store.IsExpired(token) {
		user, ok := m.store.ExtractUser(token)
		if ok {
			if state, ok := authenticated(user, token, refresh, m.now()); ok {
				return state
			}
		}
		m.logger.Warn("stored token has no usable user claim; discarding")
		m.removeTokens(ctx)
		return anonymous("")
	}

	if hasRefresh && !m.store.IsExpired(refresh) && m.authn != nil {
		state, err := m.exchange(ctx, refresh)
		if err == nil {
			return state
		}
		m.logger.Info("session refresh on startup failed", zap.Error(err))
	}

	if hasToken || hasRefresh {
		m.removeTokens(ctx)
	}
	return anonymous("")
}

// Login authenticates against the backend. On failure the session is
// anonymous with a user-facing Error, any previous session's tokens are
// removed from storage, and ErrAuthenticationFailed is returned.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	prev := m.Snapshot()
	m.swap(loading(prev))

	res, err := m.authn.Login(ctx, creds)
	if err != nil {
		msg := msgLoginUnavailable
		if errors.Is(err, ErrInvalidCredentials) {
			msg = msgInvalidCredentials
		}
		m.logger.Info("login failed", zap.String("email", creds.Email), zap.Error(err))
		m.failLogin(ctx, prev, msg, msg)
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	state, ok := authenticated(&res.User, res.Token, res.RefreshToken, m.now())
	if !ok {
		m.logger.Warn("backend returned an unusable token", zap.String("email", creds.Email))
		m.failLogin(ctx, prev, msgLoginUnavailable, "unusable token")
		return fmt.Errorf("%w: unusable token", ErrAuthenticationFailed)
	}

	m.persist(ctx, res)
	m.swap(state)
	m.logger.Info("login succeeded", zap.String("user_id", res.User.ID), zap.String("role", string(res.User.Role)))
	m.publish(ctx, events.EventSessionAuthenticated, state.User, "login")
	return nil
}

// failLogin settles a failed login as anonymous. Storage is cleared when a
// session was active so a stored token cannot outlive the state.
func (m *Manager) failLogin(ctx context.Context, prev State, msg, reason string) {
	if prev.IsAuthenticated {
		m.removeTokens(ctx)
	}
	m.swap(anonymous(msg))
	if prev.IsAuthenticated {
		m.publish(ctx, events.EventSessionEnded, prev.User, "login failed")
	}
	m.publish(ctx, events.EventLoginFailed, nil, reason)
}

// Refresh exchanges the refresh token for a new pair. A failed exchange ends
// the session.
func (m *Manager) Refresh(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	refresh := m.Snapshot().RefreshToken
	if refresh == "" {
		refresh, _ = m.store.GetRefresh(ctx)
	}
	if refresh == "" || m.store.IsExpired(refresh) {
		return ErrNoRefreshToken
	}

	state, err := m.exchange(ctx, refresh)
	if err != nil {
		m.logoutLocked(ctx, "refresh failed")
		return fmt.Errorf("refresh session: %w", err)
	}
	m.swap(state)
	m.publish(ctx, events.EventSessionAuthenticated, state.User, "refresh")
	return nil
}

// Logout clears storage and resets to anonymous. The state is reset even
// when storage removal fails; that error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.logoutLocked(ctx, "logout")
}

func (m *Manager) logoutLocked(ctx context.Context, reason string) error {
	prev := m.Snapshot()
	err := m.store.Remove(ctx)
	if err != nil {
		m.logger.Warn("token removal failed", zap.Error(err))
	}
	m.swap(anonymous(""))
	if prev.IsAuthenticated {
		m.publish(ctx, events.EventSessionEnded, prev.User, reason)
	}
	return err
}

func (m *Manager) exchange(ctx context.Context, refresh string) (State, error) {
	res, err := m.authn.Refresh(ctx, refresh)
	if err != nil {
		return State{}, err
	}
	if res.RefreshToken == "" {
		res.RefreshToken = refresh
	}
	state, ok := authenticated(&res.User, res.Token, res.RefreshToken, m.now())
	if !ok {
		return State{}, errors.New("unusable token")
	}
	m.persist(ctx, res)
	return state, nil
}

func (m *Manager) persist(ctx context.Context, res domain.AuthResult) {
	if err := m.store.Set(ctx, res.Token, domain.TokenKindAccess); err != nil {
		m.logger.Warn("storing access token failed", zap.Error(err))
	}
	if res.RefreshToken == "" {
		return
	}
	if err := m.store.Set(ctx, res.RefreshToken, domain.TokenKindRefresh); err != nil {
		m.logger.Warn("storing refresh token failed", zap.Error(err))
	}
}

func (m *Manager) removeTokens(ctx context.Context) {
	if err := m.store.Remove(ctx); err != nil {
		m.logger.Warn("token removal failed", zap.Error(err))
	}
}

func (m *Manager) swap(next State) {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, user *domain.User, reason string) {
	if m.dispatcher == nil {
		return
	}
	payload := events.SessionPayload{Reason: reason}
	subject := ""
	if user != nil {
		payload.UserID = user.ID
		payload.Role = user.Role
		subject = user.ID
	}
	if err := m.dispatcher.Publish(ctx, events.NewEvent(eventType, subject, payload)); err != nil {
		m.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
