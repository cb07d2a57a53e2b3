package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/tokenstore"
)

type fakeAuthenticator struct {
	loginFn   func(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
	refreshFn func(ctx context.Context, refreshToken string) (domain.AuthResult, error)
}

func (f *fakeAuthenticator) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, creds)
	}
	return domain.AuthResult{}, ErrInvalidCredentials
}

func (f *fakeAuthenticator) Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, refreshToken)
	}
	return domain.AuthResult{}, errors.New("refresh unsupported")
}

var tokens = auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)

func issue(t *testing.T, user domain.User) domain.AuthResult {
	t.Helper()
	access, _, err := tokens.GenerateToken(user, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	refresh, _, err := tokens.GenerateToken(user, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return domain.AuthResult{User: user, Token: access, RefreshToken: refresh}
}

func expiredToken(t *testing.T, user domain.User) string {
	t.Helper()
	tm := auth.NewTokenManager("test-secret", time.Nanosecond, time.Nanosecond)
	token, _, err := tm.GenerateToken(user, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(time.Millisecond)
	return token
}

func newStore() *tokenstore.TokenStore {
	return tokenstore.New(tokenstore.NewMemoryBackend(), tokenstore.NewMemoryBackend(), nil, tokenstore.Options{})
}

var staffUser = domain.User{ID: "u-1", Email: "staff@example.com", Name: "Sam", Role: domain.RoleStaff}

func TestManager_StartsLoading(t *testing.T) {
	m := NewManager(newStore(), &fakeAuthenticator{}, nil, nil)
	s := m.Snapshot()
	if !s.IsLoading || s.IsAuthenticated || s.User != nil {
		t.Errorf("initial state = %+v", s)
	}
}

func TestManager_InitializeWithoutToken(t *testing.T) {
	m := NewManager(newStore(), &fakeAuthenticator{}, nil, nil)
	m.Initialize(context.Background())

	s := m.Snapshot()
	if s.IsLoading || s.IsAuthenticated {
		t.Errorf("state = %+v, want anonymous and settled", s)
	}
	select {
	case <-m.Ready():
	default:
		t.Error("Ready not closed after Initialize")
	}
}

func TestManager_InitializeRestoresValidToken(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	res := issue(t, staffUser)
	_ = store.Set(ctx, res.Token, domain.TokenKindAccess)

	m := NewManager(store, &fakeAuthenticator{}, nil, nil)
	m.Initialize(ctx)

	s := m.Snapshot()
	if !s.IsAuthenticated || s.User == nil || s.User.ID != "u-1" || s.Role() != domain.RoleStaff {
		t.Errorf("state = %+v", s)
	}
	if s.IsLoading {
		t.Error("loading left true")
	}
}

func TestManager_InitializeRunsOnce(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	m := NewManager(store, &fakeAuthenticator{}, nil, nil)
	m.Initialize(ctx)

	res := issue(t, staffUser)
	_ = store.Set(ctx, res.Token, domain.TokenKindAccess)
	m.Initialize(ctx)

	if m.Snapshot().IsAuthenticated {
		t.Error("second Initialize should be a no-op")
	}
}

func TestManager_InitializeDiscardsExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_ = store.Set(ctx, expiredToken(t, staffUser), domain.TokenKindAccess)

	m := NewManager(store, &fakeAuthenticator{}, nil, nil)
	m.Initialize(ctx)

	if m.Snapshot().IsAuthenticated {
		t.Error("expired token must not authenticate")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("expired token should be removed")
	}
}

func TestManager_InitializeDiscardsTokenWithoutUser(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_ = store.Set(ctx, "not.a.token", domain.TokenKindAccess)

	m := NewManager(store, &fakeAuthenticator{}, nil, nil)
	m.Initialize(ctx)

	if m.Snapshot().IsAuthenticated {
		t.Error("undecodable token must not authenticate")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("undecodable token should be removed")
	}
}

func TestManager_InitializeRefreshesExpiredAccess(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	fresh := issue(t, staffUser)
	_ = store.Set(ctx, expiredToken(t, staffUser), domain.TokenKindAccess)
	_ = store.Set(ctx, fresh.RefreshToken, domain.TokenKindRefresh)

	var gotRefresh string
	authn := &fakeAuthenticator{refreshFn: func(_ context.Context, rt string) (domain.AuthResult, error) {
		gotRefresh = rt
		return domain.AuthResult{User: staffUser, Token: fresh.Token}, nil
	}}

	m := NewManager(store, authn, nil, nil)
	m.Initialize(ctx)

	s := m.Snapshot()
	if !s.IsAuthenticated {
		t.Fatalf("state = %+v, want authenticated via refresh", s)
	}
	if gotRefresh != fresh.RefreshToken {
		t.Error("refresh token not passed to backend")
	}
	if s.RefreshToken != fresh.RefreshToken {
		t.Error("refresh token should be kept when backend does not rotate it")
	}
	if tok, _ := store.Get(ctx); tok != fresh.Token {
		t.Error("refreshed access token not stored")
	}
}

func TestManager_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	res := issue(t, staffUser)
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.EventType
	dispatcher.Subscribe(events.EventSessionAuthenticated, func(_ context.Context, e events.Event) error {
		published = append(published, e.Type)
		return nil
	})

	authn := &fakeAuthenticator{loginFn: func(_ context.Context, creds domain.Credentials) (domain.AuthResult, error) {
		if creds.Email != "staff@example.com" {
			t.Errorf("email = %q", creds.Email)
		}
		return res, nil
	}}
	m := NewManager(store, authn, dispatcher, nil)
	m.Initialize(ctx)

	if err := m.Login(ctx, domain.Credentials{Email: "staff@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s := m.Snapshot()
	if !s.IsAuthenticated || s.IsLoading || s.Error != "" || s.User.ID != "u-1" {
		t.Errorf("state = %+v", s)
	}
	if tok, _ := store.Get(ctx); tok != res.Token {
		t.Error("access token not stored")
	}
	if tok, _ := store.GetRefresh(ctx); tok != res.RefreshToken {
		t.Error("refresh token not stored")
	}
	if len(published) != 1 {
		t.Errorf("published = %v", published)
	}
}

func TestManager_LoginFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newStore(), &fakeAuthenticator{}, nil, nil)
	m.Initialize(ctx)

	err := m.Login(ctx, domain.Credentials{Email: "x@example.com", Password: "bad"})
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}

	s := m.Snapshot()
	if s.IsAuthenticated || s.IsLoading || s.User != nil {
		t.Errorf("state = %+v", s)
	}
	if s.Error != msgInvalidCredentials {
		t.Errorf("error = %q", s.Error)
	}
}

func TestManager_LoginBackendError(t *testing.T) {
	ctx := context.Background()
	authn := &fakeAuthenticator{loginFn: func(context.Context, domain.Credentials) (domain.AuthResult, error) {
		return domain.AuthResult{}, errors.New("connection refused")
	}}
	m := NewManager(newStore(), authn, nil, nil)

	_ = m.Login(ctx, domain.Credentials{Email: "x@example.com"})
	if s := m.Snapshot(); s.Error != msgLoginUnavailable || s.IsLoading {
		t.Errorf("state = %+v", s)
	}
}

func TestManager_FailedReloginClearsStorage(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	res := issue(t, staffUser)
	authn := &fakeAuthenticator{loginFn: func(_ context.Context, creds domain.Credentials) (domain.AuthResult, error) {
		if creds.Password != "pw" {
			return domain.AuthResult{}, ErrInvalidCredentials
		}
		return res, nil
	}}
	dispatcher := events.NewInMemoryDispatcher()
	var ended int
	dispatcher.Subscribe(events.EventSessionEnded, func(context.Context, events.Event) error {
		ended++
		return nil
	})
	m := NewManager(store, authn, dispatcher, nil)
	m.Initialize(ctx)

	if err := m.Login(ctx, domain.Credentials{Email: staffUser.Email, Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.Login(ctx, domain.Credentials{Email: staffUser.Email, Password: "wrong"}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v", err)
	}

	s := m.Snapshot()
	if s.IsAuthenticated || s.Error != msgInvalidCredentials {
		t.Errorf("state = %+v", s)
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("access token still stored after failed re-login")
	}
	if _, ok := store.GetRefresh(ctx); ok {
		t.Error("refresh token still stored after failed re-login")
	}
	if ended != 1 {
		t.Errorf("session.ended published %d times", ended)
	}

	restarted := NewManager(store, authn, nil, nil)
	restarted.Initialize(ctx)
	if restarted.Snapshot().IsAuthenticated {
		t.Error("restart restored a session that had ended")
	}
}

func TestManager_LoginRejectsUnusableToken(t *testing.T) {
	ctx := context.Background()
	authn := &fakeAuthenticator{loginFn: func(context.Context, domain.Credentials) (domain.AuthResult, error) {
		return domain.AuthResult{User: staffUser, Token: expiredToken(t, staffUser)}, nil
	}}
	store := newStore()
	m := NewManager(store, authn, nil, nil)

	if err := m.Login(ctx, domain.Credentials{}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v", err)
	}
	if m.Snapshot().IsAuthenticated {
		t.Error("expired token must not authenticate")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("unusable token must not be stored")
	}
}

func TestManager_ConcurrentLoginsNeverSplitState(t *testing.T) {
	ctx := context.Background()
	res := issue(t, staffUser)
	var n int
	var nmu sync.Mutex
	authn := &fakeAuthenticator{loginFn: func(context.Context, domain.Credentials) (domain.AuthResult, error) {
		nmu.Lock()
		n++
		odd := n%2 == 1
		nmu.Unlock()
		if odd {
			return res, nil
		}
		return domain.AuthResult{}, ErrInvalidCredentials
	}}
	m := NewManager(newStore(), authn, nil, nil)
	m.Initialize(ctx)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := m.Snapshot()
			if s.IsAuthenticated != (s.User != nil) {
				t.Errorf("split state observed: %+v", s)
				return
			}
		}
	}()

	var logins sync.WaitGroup
	for i := 0; i < 20; i++ {
		logins.Add(1)
		go func() {
			defer logins.Done()
			_ = m.Login(ctx, domain.Credentials{Email: "staff@example.com"})
		}()
	}
	logins.Wait()
	close(stop)
	wg.Wait()

	if m.Snapshot().IsLoading {
		t.Error("loading left true after concurrent logins")
	}
}

func TestManager_Logout(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	res := issue(t, staffUser)
	dispatcher := events.NewInMemoryDispatcher()
	var ended int
	dispatcher.Subscribe(events.EventSessionEnded, func(context.Context, events.Event) error {
		ended++
		return nil
	})
	m := NewManager(store, &fakeAuthenticator{loginFn: func(context.Context, domain.Credentials) (domain.AuthResult, error) {
		return res, nil
	}}, dispatcher, nil)
	m.Initialize(ctx)
	_ = m.Login(ctx, domain.Credentials{})

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	s := m.Snapshot()
	if s.IsAuthenticated || s.User != nil || s.Token != "" || s.Error != "" {
		t.Errorf("state = %+v", s)
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("access token survived logout")
	}
	if _, ok := store.GetRefresh(ctx); ok {
		t.Error("refresh token survived logout")
	}
	if ended != 1 {
		t.Errorf("session.ended published %d times", ended)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if ended != 1 {
		t.Error("anonymous logout should not publish")
	}
}

func TestManager_RefreshFailureLogsOut(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	res := issue(t, staffUser)
	m := NewManager(store, &fakeAuthenticator{
		loginFn: func(context.Context, domain.Credentials) (domain.AuthResult, error) { return res, nil },
	}, nil, nil)
	m.Initialize(ctx)
	_ = m.Login(ctx, domain.Credentials{})

	if err := m.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if m.Snapshot().IsAuthenticated {
		t.Error("failed refresh should end the session")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("tokens should be removed after failed refresh")
	}
}

func TestManager_RefreshWithoutToken(t *testing.T) {
	m := NewManager(newStore(), &fakeAuthenticator{}, nil, nil)
	if err := m.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("err = %v, want ErrNoRefreshToken", err)
	}
}

func TestAuthenticatedRequiresEverything(t *testing.T) {
	now := time.Now()
	res := issue(t, staffUser)
	admin := domain.User{ID: "a", Role: "root"}

	if _, ok := authenticated(nil, res.Token, "", now); ok {
		t.Error("nil user accepted")
	}
	if _, ok := authenticated(&staffUser, "", "", now); ok {
		t.Error("empty token accepted")
	}
	if _, ok := authenticated(&admin, res.Token, "", now); ok {
		t.Error("unknown role accepted")
	}
	if _, ok := authenticated(&staffUser, res.Token, "", now.Add(2*time.Hour)); ok {
		t.Error("expired token accepted")
	}
	s, ok := authenticated(&staffUser, res.Token, "", now)
	if !ok || !s.IsAuthenticated || s.User == &staffUser {
		t.Errorf("state = %+v, ok = %v", s, ok)
	}
}
