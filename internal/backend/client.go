package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/session"
)

const defaultTimeout = 10 * time.Second

// Client authenticates against a remote auth API exposing
// POST /auth/login and POST /auth/refresh.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, logger: logger}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   any    `json:"error"`
}

// Login posts credentials to /auth/login.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	return c.post(ctx, "/auth/login", creds)
}

// Refresh exchanges a refresh token at /auth/refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error) {
	if refreshToken == "" {
		return domain.AuthResult{}, session.ErrNoRefreshToken
	}
	return c.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken})
}

func (c *Client) post(ctx context.Context, path string, body any) (domain.AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuthResult{}, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.baseURL + path)
	agent.JSON(body)
	agent.Timeout(timeout)

	code, payload, errs := agent.Bytes()
	if len(errs) > 0 {
		c.logger.Warn("auth backend request failed", zap.String("path", path), zap.Errors("errors", errs))
		return domain.AuthResult{}, fmt.Errorf("%w: %v", session.ErrAuthenticationFailed, errors.Join(errs...))
	}

	switch {
	case code == fiber.StatusUnauthorized || code == fiber.StatusForbidden || code == fiber.StatusBadRequest:
		return domain.AuthResult{}, fmt.Errorf("%w: %s", session.ErrInvalidCredentials, describe(payload))
	case code < 200 || code >= 300:
		c.logger.Warn("auth backend returned error", zap.String("path", path), zap.Int("status", code))
		return domain.AuthResult{}, fmt.Errorf("%w: status %d", session.ErrAuthenticationFailed, code)
	}

	var result domain.AuthResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.AuthResult{}, fmt.Errorf("%w: decode response: %v", session.ErrAuthenticationFailed, err)
	}
	if result.Token == "" {
		return domain.AuthResult{}, fmt.Errorf("%w: response missing token", session.ErrAuthenticationFailed)
	}
	return result, nil
}

func describe(payload []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(payload, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	return "rejected by auth backend"
}
