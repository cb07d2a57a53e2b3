package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/taskboard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionAuthenticated EventType = "session.authenticated"
	EventSessionEnded         EventType = "session.ended"
	EventLoginFailed          EventType = "session.login_failed"
	EventTaskOverdue          EventType = "task.overdue"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, subjectID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionPayload accompanies session events.
type SessionPayload struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// TaskOverduePayload accompanies task.overdue.
type TaskOverduePayload struct {
	OldStatus  domain.TaskStatus `json:"old_status"`
	AssigneeID *string           `json:"assignee_id,omitempty"`
	DueDate    time.Time         `json:"due_date"`
}
