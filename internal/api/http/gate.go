package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/authz"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/tokenstore"
)

// TokenSource supplies the stored access token when the request carries none.
type TokenSource interface {
	Get(ctx context.Context) (string, bool)
}

// GateConfig configures EdgeGate.
type GateConfig struct {
	Routes authz.RouteTable
	// Verifier checks token signatures. Nil means structural decoding only.
	Verifier authz.Verifier
	Tokens   TokenSource
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// EdgeGate authorizes every request from the raw token before any handler
// runs. The token comes from the token cookie, falling back to cfg.Tokens.
func EdgeGate(cfg GateConfig) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if cfg.Routes.Classify(path) == authz.RoutePublic {
			cfg.Metrics.RecordDecision("edge", string(authz.OutcomeAllow), string(authz.ReasonPublic))
			return c.Next()
		}

		token := c.Cookies(tokenstore.KeyAccess)
		if token == "" && cfg.Tokens != nil {
			token, _ = cfg.Tokens.Get(c.UserContext())
		}

		decision := cfg.Routes.Authorize(path, authz.SubjectFromToken(token, cfg.Verifier, now()))
		cfg.Metrics.RecordDecision("edge", string(decision.Outcome), string(decision.Reason))

		if decision.Outcome == authz.OutcomeRedirect {
			logger.Debug("edge redirect",
				zap.String("path", path),
				zap.String("location", decision.Location),
				zap.String("reason", string(decision.Reason)))
			return c.Redirect(decision.Location, fiber.StatusTemporaryRedirect)
		}
		return c.Next()
	}
}
