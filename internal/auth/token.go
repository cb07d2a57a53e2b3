package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/taskboard/internal/domain"
)

const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// ErrTokenDecode is returned when a token cannot be structurally decoded.
var ErrTokenDecode = errors.New("token decode failed")

// Claims describes the JWT payload. Only exp and user are required by readers.
type Claims struct {
	User *domain.User     `json:"user,omitempty"`
	Kind domain.TokenKind `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a new manager. Non-positive TTLs fall back to defaults.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// GenerateToken builds and signs a JWT of the given kind for the user.
func (tm *TokenManager) GenerateToken(user domain.User, kind domain.TokenKind) (string, time.Time, error) {
	ttl := tm.accessTTL
	if kind == domain.TokenKindRefresh {
		ttl = tm.refreshTTL
	}
	now := tm.now()
	expiresAt := now.Add(ttl)

	claimUser := user
	claimUser.PasswordHash = ""
	claims := &Claims{
		User: &claimUser,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature, algorithm and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Decode reads the payload segment without verifying the signature.
// Callers must not treat the result as authentic. The header must still
// decode and name a registered alg, otherwise the token is undecodable.
func Decode(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrTokenDecode
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	return claims, nil
}

// IsExpired reports whether the token's exp is not after now.
// Undecodable tokens and tokens without exp count as expired.
func IsExpired(tokenStr string, now time.Time) bool {
	claims, err := Decode(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(now)
}

// ExtractUser returns the user claim, or false when the token is malformed
// or carries no user.
func ExtractUser(tokenStr string) (*domain.User, bool) {
	claims, err := Decode(tokenStr)
	if err != nil || claims.User == nil {
		return nil, false
	}
	return claims.User, true
}
