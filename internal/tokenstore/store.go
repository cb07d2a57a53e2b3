package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/domain"
)

// Storage keys, shared with the cookies set by the HTTP layer.
const (
	KeyAccess  = "token"
	KeyRefresh = "refreshToken"
)

// ErrEmptyToken is returned by Set for an empty token.
var ErrEmptyToken = errors.New("empty token")

// Options configures per-kind expiry.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenStore persists the access and refresh tokens on two redundant
// surfaces: an expiring cookie-like one and a persistent one. Reads prefer
// the cookie surface.
type TokenStore struct {
	cookie     Backend
	persistent Backend
	logger     *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// New builds a store. Either backend may be nil, in which case it is skipped.
func New(cookie, persistent Backend, logger *zap.Logger, opts Options) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = auth.DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = auth.DefaultRefreshTTL
	}
	return &TokenStore{
		cookie:     cookie,
		persistent: persistent,
		logger:     logger,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        time.Now,
	}
}

// Get returns the stored access token.
func (s *TokenStore) Get(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyAccess)
}

// GetRefresh returns the stored refresh token.
func (s *TokenStore) GetRefresh(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyRefresh)
}

func (s *TokenStore) read(ctx context.Context, key string) (string, bool) {
	for _, b := range s.backends() {
		val, err := b.Get(ctx, key)
		if err == nil && val != "" {
			return val, true
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.Warn("token storage read failed", zap.String("key", key), zap.Error(err))
		}
	}
	return "", false
}

// Set writes the token to both surfaces with the kind's expiry, replacing any
// previous value.
func (s *TokenStore) Set(ctx context.Context, token string, kind domain.TokenKind) error {
	if token == "" {
		return ErrEmptyToken
	}
	key, ttl := KeyAccess, s.accessTTL
	if kind == domain.TokenKindRefresh {
		key, ttl = KeyRefresh, s.refreshTTL
	}

	var errs []error
	for _, b := range s.backends() {
		if err := b.Set(ctx, key, token, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("store %s token: %w", kind, err)
	}
	return nil
}

// Remove deletes both token kinds from both surfaces. Removing when nothing
// is stored is not an error.
func (s *TokenStore) Remove(ctx context.Context) error {
	var errs []error
	for _, b := range s.backends() {
		if err := b.Delete(ctx, KeyAccess, KeyRefresh); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove tokens: %w", err)
	}
	return nil
}

// IsExpired reports whether the token is expired or undecodable.
func (s *TokenStore) IsExpired(token string) bool {
	return auth.IsExpired(token, s.now())
}

// ExtractUser returns the token's user claim.
func (s *TokenStore) ExtractUser(token string) (*domain.User, bool) {
	return auth.ExtractUser(token)
}

func (s *TokenStore) backends() []Backend {
	out := make([]Backend, 0, 2)
	if s.cookie != nil {
		out = append(out, s.cookie)
	}
	if s.persistent != nil {
		out = append(out, s.persistent)
	}
	return out
}
