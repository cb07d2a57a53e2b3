// Package taskstatus derives the display status of a task from its stored
// status and due date.
package taskstatus

import (
	"time"

	"github.com/spec-kit/taskboard/internal/domain"
)

// EffectiveStatus returns overdue for a non-terminal task whose due date is
// before now, and the stored status otherwise.
func EffectiveStatus(task domain.Task, now time.Time) domain.TaskStatus {
	if task.Status.Terminal() {
		return task.Status
	}
	if task.DueDate != nil && task.DueDate.Before(now) {
		return domain.TaskStatusOverdue
	}
	return task.Status
}

// ApplyDerivedStatus returns task itself when its status is already the
// effective one, and a modified copy otherwise. The input is never mutated.
func ApplyDerivedStatus(task *domain.Task, now time.Time) *domain.Task {
	if task == nil {
		return nil
	}
	status := EffectiveStatus(*task, now)
	if status == task.Status {
		return task
	}
	out := *task
	out.Status = status
	return &out
}

// ApplyAll derives statuses for a list. Tasks whose status is unchanged are
// copied as-is.
func ApplyAll(tasks []domain.Task, now time.Time) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i := range tasks {
		out[i] = *ApplyDerivedStatus(&tasks[i], now)
	}
	return out
}

// Counts tallies tasks by effective status.
func Counts(tasks []domain.Task, now time.Time) map[domain.TaskStatus]int {
	counts := make(map[domain.TaskStatus]int)
	for _, task := range tasks {
		counts[EffectiveStatus(task, now)]++
	}
	return counts
}
