// Package session holds the process-wide authentication state and the
// transitions between its states.
package session

import (
	"time"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/domain"
)

// State is an immutable snapshot of the session. IsAuthenticated is only
// ever true for values built by authenticated.
type State struct {
	User            *domain.User `json:"user,omitempty"`
	Token           string       `json:"-"`
	RefreshToken    string       `json:"-"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsLoading       bool         `json:"isLoading"`
	Error           string       `json:"error,omitempty"`
}

// Initial is the state before Initialize has settled.
func Initial() State {
	return State{IsLoading: true}
}

// Role returns the user's role, or "" when anonymous.
func (s State) Role() domain.Role {
	if !s.IsAuthenticated || s.User == nil {
		return ""
	}
	return s.User.Role
}

func anonymous(errMsg string) State {
	return State{Error: errMsg}
}

func loading(s State) State {
	s.IsLoading = true
	s.Error = ""
	return s
}

// authenticated returns an authenticated state, or false when the user or
// token is missing, the role is unknown, or the token has expired.
func authenticated(user *domain.User, token, refreshToken string, now time.Time) (State, bool) {
	if user == nil || token == "" || !user.Role.Valid() || auth.IsExpired(token, now) {
		return State{}, false
	}
	u := *user
	return State{
		User:            &u,
		Token:           token,
		RefreshToken:    refreshToken,
		IsAuthenticated: true,
	}, true
}
