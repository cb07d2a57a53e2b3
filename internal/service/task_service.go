package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/taskstatus"
)

const listLimit = 200

// TaskService serves task views. Reads apply the derived status without
// writing it back; PersistOverdue is the only writer.
type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	TaskRepo   repository.TaskRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTaskService builds the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// TaskQuery narrows a task list.
type TaskQuery struct {
	ProjectID *string
	Statuses  []domain.TaskStatus
}

// Dashboard is the summary shown on a role's home page.
type Dashboard struct {
	Total    int                       `json:"total"`
	ByStatus map[domain.TaskStatus]int `json:"by_status"`
	Upcoming []domain.Task             `json:"upcoming"`
	Overdue  []domain.Task             `json:"overdue"`
}

// ListForUser returns the tasks visible to user with derived statuses.
// Staff see their own tasks; managers and admins see all. Status filters
// match the derived status.
func (s *TaskService) ListForUser(ctx context.Context, user domain.User, q TaskQuery) ([]domain.Task, error) {
	now := s.now()
	filter := repository.TaskFilter{
		ProjectID:         q.ProjectID,
		EffectiveStatuses: q.Statuses,
		Now:               now,
		Limit:             listLimit,
	}
	if user.Role == domain.RoleStaff {
		id := user.ID
		filter.AssigneeID = &id
	}

	stored, err := s.tasks.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	// The query already narrows by effective status; the pass below re-checks
	// against the derived values.
	derived := taskstatus.ApplyAll(stored, now)
	if len(q.Statuses) == 0 {
		return derived, nil
	}

	want := make(map[domain.TaskStatus]struct{}, len(q.Statuses))
	for _, st := range q.Statuses {
		want[st] = struct{}{}
	}
	out := make([]domain.Task, 0, len(derived))
	for _, task := range derived {
		if _, ok := want[task.Status]; ok {
			out = append(out, task)
		}
	}
	return out, nil
}

// DashboardFor summarizes the user's visible tasks.
func (s *TaskService) DashboardFor(ctx context.Context, user domain.User) (Dashboard, error) {
	tasks, err := s.ListForUser(ctx, user, TaskQuery{})
	if err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	dash := Dashboard{
		Total:    len(tasks),
		ByStatus: make(map[domain.TaskStatus]int),
		Upcoming: []domain.Task{},
		Overdue:  []domain.Task{},
	}
	weekAhead := now.Add(7 * 24 * time.Hour)
	for _, task := range tasks {
		dash.ByStatus[task.Status]++
		switch {
		case task.Status == domain.TaskStatusOverdue:
			dash.Overdue = append(dash.Overdue, task)
		case !task.Status.Terminal() && task.DueDate != nil && task.DueDate.Before(weekAhead):
			dash.Upcoming = append(dash.Upcoming, task)
		}
	}
	return dash, nil
}

// PersistOverdue writes the overdue status for tasks whose effective status
// has become overdue and returns how many rows changed.
func (s *TaskService) PersistOverdue(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.tasks.ListOverdueCandidates(ctx, now, 0)
	if err != nil {
		return 0, fmt.Errorf("list overdue candidates: %w", err)
	}

	ids := make([]string, 0, len(candidates))
	due := make([]domain.Task, 0, len(candidates))
	for _, task := range candidates {
		if taskstatus.EffectiveStatus(task, now) != domain.TaskStatusOverdue || task.Status == domain.TaskStatusOverdue {
			continue
		}
		ids = append(ids, task.ID)
		due = append(due, task)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.tasks.MarkOverdue(ctx, ids, now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	s.metrics.RecordOverdue(int(n))
	s.logger.Info("tasks marked overdue", zap.Int64("count", n))

	if s.dispatcher != nil {
		for _, task := range due {
			payload := events.TaskOverduePayload{OldStatus: task.Status, AssigneeID: task.AssigneeID, DueDate: *task.DueDate}
			if err := s.dispatcher.Publish(ctx, events.NewEvent(events.EventTaskOverdue, task.ID, payload)); err != nil {
				s.logger.Warn("task.overdue handler failed", zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}
	return int(n), nil
}
