package dto

import "github.com/spec-kit/taskboard/internal/domain"

// LoginRequest payload for POST /session/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	User            *domain.User `json:"user,omitempty"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	Error           string       `json:"error,omitempty"`
	Home            string       `json:"home,omitempty"`
}

// PendingResponse is served while the session is still being restored.
type PendingResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}
