package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/session"
)

// ErrEmailTaken is returned by CreateUser for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// AuthService is the in-process authentication backend: users in Postgres,
// bcrypt passwords, HS256 tokens.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		bcryptCost: cfg.BcryptCost,
	}
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return domain.AuthResult{}, session.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthResult{}, session.ErrInvalidCredentials
		}
		return domain.AuthResult{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, creds.Password); err != nil {
		return domain.AuthResult{}, session.ErrInvalidCredentials
	}
	return s.issue(*user)
}

// Refresh verifies a refresh token and issues a new pair for its user. The
// user is reloaded so profile changes are picked up.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error) {
	claims, err := s.tokenMgr.ParseToken(refreshToken)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("%w: %v", session.ErrInvalidCredentials, err)
	}
	if claims.Kind != domain.TokenKindRefresh || claims.Subject == "" {
		return domain.AuthResult{}, fmt.Errorf("%w: not a refresh token", session.ErrInvalidCredentials)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuthResult{}, session.ErrInvalidCredentials
		}
		return domain.AuthResult{}, err
	}
	return s.issue(*user)
}

// CreateUser registers a user with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, user domain.User, password string) (*domain.User, error) {
	if !user.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", user.Role)
	}
	if _, err := s.users.GetByEmail(ctx, user.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.ID = uuid.NewString()
	user.PasswordHash = hash
	if err := s.users.Create(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResetPassword replaces the password of the user registered under email.
// Tokens already issued stay valid until they expire.
func (s *AuthService) ResetPassword(ctx context.Context, email, password string) error {
	if password == "" {
		return session.ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if auth.ComparePassword(user.PasswordHash, password) == nil {
		return nil
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// TokenManager exposes the underlying token manager for signature checks.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user domain.User) (domain.AuthResult, error) {
	access, _, err := s.tokenMgr.GenerateToken(user, domain.TokenKindAccess)
	if err != nil {
		return domain.AuthResult{}, err
	}
	refresh, _, err := s.tokenMgr.GenerateToken(user, domain.TokenKindRefresh)
	if err != nil {
		return domain.AuthResult{}, err
	}
	user.PasswordHash = ""
	return domain.AuthResult{User: user, Token: access, RefreshToken: refresh}, nil
}
