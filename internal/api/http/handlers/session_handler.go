package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/taskboard/internal/api/dto"
	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/authz"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/session"
	"github.com/spec-kit/taskboard/internal/tokenstore"
	apperrors "github.com/spec-kit/taskboard/pkg/util"
)

// SessionReader exposes the current session state.
type SessionReader interface {
	Snapshot() session.State
}

// SessionManager drives session transitions.
type SessionManager interface {
	SessionReader
	Login(ctx context.Context, creds domain.Credentials) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// CookieOptions controls the token cookies mirrored to the browser.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionHandler exposes login, logout, refresh and the session snapshot.
type SessionHandler struct {
	sessions SessionManager
	routes   authz.RouteTable
	limiter  *rate.Limiter
	cookies  CookieOptions
	logger   *zap.Logger
}

// NewSessionHandler constructs handler. A nil limiter disables throttling.
func NewSessionHandler(sessions SessionManager, routes authz.RouteTable, limiter *rate.Limiter, cookies CookieOptions, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, routes: routes, limiter: limiter, cookies: cookies, logger: logger}
}

// Get handles GET /session.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.response(h.sessions.Snapshot())})
}

// Login handles POST /session/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	if h.limiter != nil && !h.limiter.Allow() {
		return apperrors.NewTooManyRequests("too many login attempts, please wait")
	}

	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	if err := h.sessions.Login(c.UserContext(), domain.Credentials{Email: req.Email, Password: req.Password}); err != nil {
		h.clearTokenCookies(c)
		return apperrors.NewAuthenticationFailed(h.sessions.Snapshot().Error, err)
	}

	state := h.sessions.Snapshot()
	h.setTokenCookies(c, state)
	return c.JSON(fiber.Map{"data": h.response(state)})
}

// Logout handles POST /session/logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	err := h.sessions.Logout(c.UserContext())
	h.clearTokenCookies(c)
	if err != nil {
		h.logger.Warn("logout left tokens in storage", zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": h.response(h.sessions.Snapshot())})
}

// Refresh handles POST /session/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	if err := h.sessions.Refresh(c.UserContext()); err != nil {
		h.clearTokenCookies(c)
		if errors.Is(err, session.ErrNoRefreshToken) {
			return apperrors.NewUnauthorized("no session to refresh")
		}
		return apperrors.NewAuthenticationFailed("Session expired, please sign in again", err)
	}
	state := h.sessions.Snapshot()
	h.setTokenCookies(c, state)
	return c.JSON(fiber.Map{"data": h.response(state)})
}

func (h *SessionHandler) response(state session.State) dto.SessionResponse {
	resp := dto.SessionResponse{
		User:            state.User,
		IsAuthenticated: state.IsAuthenticated,
		IsLoading:       state.IsLoading,
		Error:           state.Error,
	}
	if state.IsAuthenticated {
		resp.Home = h.routes.Home(state.Role())
	}
	return resp
}

func (h *SessionHandler) setTokenCookies(c *fiber.Ctx, state session.State) {
	c.Cookie(h.tokenCookie(tokenstore.KeyAccess, state.Token, h.cookies.AccessTTL))
	if state.RefreshToken != "" {
		c.Cookie(h.tokenCookie(tokenstore.KeyRefresh, state.RefreshToken, h.cookies.RefreshTTL))
	}
}

func (h *SessionHandler) clearTokenCookies(c *fiber.Ctx) {
	expired := time.Unix(0, 0)
	for _, name := range []string{tokenstore.KeyAccess, tokenstore.KeyRefresh} {
		cookie := h.tokenCookie(name, "", 0)
		cookie.Expires = expired
		cookie.MaxAge = -1
		c.Cookie(cookie)
	}
}

func (h *SessionHandler) tokenCookie(name, value string, ttl time.Duration) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
	if value == "" {
		return cookie
	}
	if claims, err := auth.Decode(value); err == nil && claims.ExpiresAt != nil {
		cookie.Expires = claims.ExpiresAt.Time
	} else if ttl > 0 {
		cookie.Expires = time.Now().Add(ttl)
	}
	return cookie
}
