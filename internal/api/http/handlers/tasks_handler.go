package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/dto"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/service"
)

// TaskReader serves task views for a user.
type TaskReader interface {
	ListForUser(ctx context.Context, user domain.User, q service.TaskQuery) ([]domain.Task, error)
	DashboardFor(ctx context.Context, user domain.User) (service.Dashboard, error)
}

// TasksHandler serves role dashboards and task lists.
type TasksHandler struct {
	tasks    TaskReader
	sessions SessionReader
}

// NewTasksHandler constructs handler.
func NewTasksHandler(tasks TaskReader, sessions SessionReader) *TasksHandler {
	return &TasksHandler{tasks: tasks, sessions: sessions}
}

// Dashboard handles GET /staff/dashboard, /manager/dashboard and /admin/dashboard.
func (h *TasksHandler) Dashboard(c *fiber.Ctx) error {
	user, err := h.principal()
	if err != nil {
		return err
	}
	dash, err := h.tasks.DashboardFor(c.UserContext(), *user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		Role:     user.Role,
		User:     user.Name,
		Total:    dash.Total,
		ByStatus: dash.ByStatus,
		Upcoming: dto.NewTaskSummaries(dash.Upcoming),
		Overdue:  dto.NewTaskSummaries(dash.Overdue),
	}})
}

// List handles GET /staff/tasks and /manager/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	user, err := h.principal()
	if err != nil {
		return err
	}
	query, err := parseTaskQuery(c)
	if err != nil {
		return err
	}
	tasks, err := h.tasks.ListForUser(c.UserContext(), *user, query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskSummaries(tasks)})
}

func (h *TasksHandler) principal() (*domain.User, error) {
	state := h.sessions.Snapshot()
	if !state.IsAuthenticated || state.User == nil {
		return nil, fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return state.User, nil
}

func parseTaskQuery(c *fiber.Ctx) (service.TaskQuery, error) {
	query := service.TaskQuery{}
	if projectID := c.Query("project_id"); projectID != "" {
		query.ProjectID = &projectID
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			status := domain.TaskStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return service.TaskQuery{}, fiber.NewError(http.StatusBadRequest, "unknown status "+string(status))
			}
			query.Statuses = append(query.Statuses, status)
		}
	}
	return query, nil
}
