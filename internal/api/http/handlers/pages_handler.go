package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/authz"
)

// PagesHandler serves the public entry pages.
type PagesHandler struct {
	sessions SessionReader
	routes   authz.RouteTable
}

// NewPagesHandler constructs handler.
func NewPagesHandler(sessions SessionReader, routes authz.RouteTable) *PagesHandler {
	return &PagesHandler{sessions: sessions, routes: routes}
}

// Root handles GET /, sending the visitor to their home or the login page.
func (h *PagesHandler) Root(c *fiber.Ctx) error {
	state := h.sessions.Snapshot()
	if state.IsLoading {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "pending", "path": c.Path()})
	}
	if state.IsAuthenticated {
		return c.Redirect(h.routes.Home(state.Role()), fiber.StatusTemporaryRedirect)
	}
	return c.Redirect(h.routes.Home(""), fiber.StatusTemporaryRedirect)
}

// Login handles GET /login. Authenticated users are sent to their home.
func (h *PagesHandler) Login(c *fiber.Ctx) error {
	state := h.sessions.Snapshot()
	if state.IsAuthenticated {
		return c.Redirect(h.routes.Home(state.Role()), fiber.StatusTemporaryRedirect)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"page":      "login",
		"loading":   state.IsLoading,
		"error":     state.Error,
		"submit_to": "/session/login",
	}})
}
