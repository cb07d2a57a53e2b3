package dto

import (
	"time"

	"github.com/spec-kit/taskboard/internal/domain"
)

// TaskSummary response.
type TaskSummary struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// DashboardResponse summarizes a role's tasks.
type DashboardResponse struct {
	Role     domain.Role               `json:"role"`
	User     string                    `json:"user"`
	Total    int                       `json:"total"`
	ByStatus map[domain.TaskStatus]int `json:"by_status"`
	Upcoming []TaskSummary             `json:"upcoming"`
	Overdue  []TaskSummary             `json:"overdue"`
}

// NewTaskSummary maps a task to its response shape.
func NewTaskSummary(t *domain.Task) TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		AssigneeID:  t.AssigneeID,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTaskSummaries maps a slice of tasks.
func NewTaskSummaries(tasks []domain.Task) []TaskSummary {
	items := make([]TaskSummary, 0, len(tasks))
	for i := range tasks {
		items = append(items, NewTaskSummary(&tasks[i]))
	}
	return items
}
