package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/taskboard/internal/domain"
)

// TaskFilter captures task list parameters. Statuses match the stored
// column; EffectiveStatuses match the status derived at Now, so overdue
// covers non-terminal tasks past their due date.
type TaskFilter struct {
	ProjectID         *string
	AssigneeID        *string
	Statuses          []domain.TaskStatus
	EffectiveStatuses []domain.TaskStatus
	Now               time.Time
	DueBefore         *time.Time
	Limit             int
	Offset            int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Task, error)
	MarkOverdue(ctx context.Context, ids []string, now time.Time) (int64, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, project_id, title, description, assignee_id, status, priority, due_date, created_at, updated_at`

var terminalStatuses = []string{string(domain.TaskStatusDone), string(domain.TaskStatusFinished), string(domain.TaskStatusCancelled)}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id=$1`
	var task domain.Task
	if err := scanTask(r.pool.QueryRow(ctx, query, id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query, args := buildTaskQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListOverdueCandidates returns non-terminal tasks past their due date whose
// stored status is not yet overdue.
func (r *taskRepository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks
        WHERE due_date IS NOT NULL AND due_date < $1 AND status <> $2 AND NOT (status = ANY($3))
        ORDER BY due_date ASC LIMIT %d`, taskColumns, limit)
	rows, err := r.pool.Query(ctx, query, now, domain.TaskStatusOverdue, terminalStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// MarkOverdue persists the overdue status. The terminal and due-date guards
// are repeated so a task completed in the meantime is left alone.
func (r *taskRepository) MarkOverdue(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `
        UPDATE tasks SET status=$1, updated_at=NOW()
        WHERE id = ANY($2) AND due_date < $3 AND NOT (status = ANY($4))`
	cmd, err := r.pool.Exec(ctx, query, domain.TaskStatusOverdue, ids, now, terminalStatuses)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func buildTaskQuery(filter TaskFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		clauses = append(clauses, fmt.Sprintf("project_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.EffectiveStatuses) > 0 {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		args = append(args, now)
		nowArg := len(args)
		args = append(args, terminalStatuses)
		terminalArg := len(args)

		alternatives := make([]string, 0, len(filter.EffectiveStatuses))
		for _, status := range filter.EffectiveStatuses {
			args = append(args, status)
			statusArg := len(args)
			switch {
			case status.Terminal():
				alternatives = append(alternatives, fmt.Sprintf("status=$%d", statusArg))
			case status == domain.TaskStatusOverdue:
				alternatives = append(alternatives, fmt.Sprintf(
					"(status=$%d OR (due_date < $%d AND NOT (status = ANY($%d))))", statusArg, nowArg, terminalArg))
			default:
				alternatives = append(alternatives, fmt.Sprintf(
					"(status=$%d AND (due_date IS NULL OR due_date >= $%d))", statusArg, nowArg))
			}
		}
		clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		clauses = append(clauses, fmt.Sprintf("due_date < $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY due_date ASC NULLS LAST, updated_at DESC LIMIT %d OFFSET %d`,
		taskColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanTask(row pgx.Row, task *domain.Task) error {
	return row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.AssigneeID,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
