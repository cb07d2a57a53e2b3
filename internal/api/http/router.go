package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Session *handlers.SessionHandler
	Pages   *handlers.PagesHandler
	Tasks   *handlers.TasksHandler
	Guard   *Guard
	Gate    fiber.Handler
	Metrics fiber.Handler

	// LoginPath serves the login page; defaults to /login.
	LoginPath string
}

// RegisterRoutes wires HTTP routes. The edge gate runs ahead of every route.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Gate != nil {
		app.Use(cfg.Gate)
	}

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	app.Get("/", cfg.Pages.Root)
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	app.Get(loginPath, cfg.Pages.Login)

	sessionGroup := app.Group("/session")
	sessionGroup.Get("", cfg.Session.Get)
	sessionGroup.Post("/login", cfg.Session.Login)
	sessionGroup.Post("/logout", cfg.Session.Logout)
	sessionGroup.Post("/refresh", cfg.Session.Refresh)

	staff := app.Group("/staff", cfg.Guard.ViewGuard(domain.RoleStaff))
	staff.Get("/dashboard", cfg.Tasks.Dashboard)
	staff.Get("/tasks", cfg.Tasks.List)

	manager := app.Group("/manager", cfg.Guard.ViewGuard(domain.RoleManager))
	manager.Get("/dashboard", cfg.Tasks.Dashboard)
	manager.Get("/tasks", cfg.Tasks.List)

	// /admin is not a scoped prefix, so any signed-in role passes both
	// layers; the dashboard content is scoped by the caller's role.
	admin := app.Group("/admin", cfg.Guard.ViewGuard())
	admin.Get("/dashboard", cfg.Tasks.Dashboard)
}
