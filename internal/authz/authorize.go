package authz

import (
	"time"

	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/domain"
)

// Outcome is the kind of decision.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomePending  Outcome = "pending"
	OutcomeRedirect Outcome = "redirect"
)

// Reason explains a decision; used for logs and metrics labels.
type Reason string

const (
	ReasonPublic          Reason = "public"
	ReasonAuthorized      Reason = "authorized"
	ReasonUnknown         Reason = "session_pending"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRoleMismatch    Reason = "role_mismatch"
)

// Decision is the result of Authorize.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   Reason
}

// Allowed reports whether the path may be served.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Subject is what is known about the caller.
type Subject struct {
	Known         bool
	Authenticated bool
	Role          domain.Role
}

// Authorize is the single authorization rule shared by the edge gate and
// the view guard.
func (t RouteTable) Authorize(path string, sub Subject) Decision {
	class := t.Classify(path)
	if class == RoutePublic {
		return Decision{Outcome: OutcomeAllow, Reason: ReasonPublic}
	}
	if !sub.Known {
		return Decision{Outcome: OutcomePending, Reason: ReasonUnknown}
	}
	if !sub.Authenticated || !sub.Role.Valid() {
		return Decision{Outcome: OutcomeRedirect, Location: t.loginPath(), Reason: ReasonUnauthenticated}
	}
	switch {
	case class == RouteStaff && sub.Role != domain.RoleStaff,
		class == RouteManager && sub.Role != domain.RoleManager:
		return Decision{Outcome: OutcomeRedirect, Location: t.Home(sub.Role), Reason: ReasonRoleMismatch}
	}
	return Decision{Outcome: OutcomeAllow, Reason: ReasonAuthorized}
}

// Verifier validates a token's signature and returns its claims.
type Verifier interface {
	ParseToken(token string) (*auth.Claims, error)
}

// SubjectFromToken derives the edge subject from a raw token. An absent,
// undecodable or expired token yields an unauthenticated subject. When
// verifier is non-nil the signature must also check out.
func SubjectFromToken(token string, verifier Verifier, now time.Time) Subject {
	sub := Subject{Known: true}
	if token == "" {
		return sub
	}

	var claims *auth.Claims
	var err error
	if verifier != nil {
		claims, err = verifier.ParseToken(token)
	} else {
		claims, err = auth.Decode(token)
	}
	if err != nil || claims.User == nil {
		return sub
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		return sub
	}
	if claims.Kind == domain.TokenKindRefresh {
		return sub
	}
	sub.Authenticated = true
	sub.Role = claims.User.Role
	return sub
}
