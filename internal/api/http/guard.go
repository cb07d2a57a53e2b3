package http

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/dto"
	"github.com/spec-kit/taskboard/internal/authz"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/session"
)

// SessionReader exposes the live session state.
type SessionReader interface {
	Snapshot() session.State
}

// Guard builds view guards over the live session state.
type Guard struct {
	routes   authz.RouteTable
	sessions SessionReader
	metrics  *observability.Metrics
	fallback string
}

// NewGuard returns a Guard. Unauthenticated visitors go to fallback, or to
// the login path when fallback is empty.
func NewGuard(routes authz.RouteTable, sessions SessionReader, metrics *observability.Metrics, fallback string) *Guard {
	return &Guard{routes: routes, sessions: sessions, metrics: metrics, fallback: fallback}
}

// ViewGuard protects a view. While the session is loading it answers 202
// with a pending placeholder and never redirects. With requiredRoles set, a
// user of another role is sent to their own home. The shared route rule is
// applied last.
func (g *Guard) ViewGuard(requiredRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := g.sessions.Snapshot()
		path := c.Path()

		if state.IsLoading {
			g.metrics.RecordDecision("view", string(authz.OutcomePending), string(authz.ReasonUnknown))
			return c.Status(fiber.StatusAccepted).JSON(dto.PendingResponse{Status: "pending", Path: path})
		}

		if !state.IsAuthenticated {
			g.metrics.RecordDecision("view", string(authz.OutcomeRedirect), string(authz.ReasonUnauthenticated))
			return c.Redirect(g.unauthenticatedTarget(), fiber.StatusTemporaryRedirect)
		}

		role := state.Role()
		if len(requiredRoles) > 0 && !slices.Contains(requiredRoles, role) {
			g.metrics.RecordDecision("view", string(authz.OutcomeRedirect), string(authz.ReasonRoleMismatch))
			return c.Redirect(g.routes.Home(role), fiber.StatusTemporaryRedirect)
		}

		decision := g.routes.Authorize(path, authz.Subject{Known: true, Authenticated: true, Role: role})
		g.metrics.RecordDecision("view", string(decision.Outcome), string(decision.Reason))
		if decision.Outcome == authz.OutcomeRedirect {
			return c.Redirect(decision.Location, fiber.StatusTemporaryRedirect)
		}
		return c.Next()
	}
}

func (g *Guard) unauthenticatedTarget() string {
	if g.fallback != "" {
		return g.fallback
	}
	return g.routes.Home("")
}
