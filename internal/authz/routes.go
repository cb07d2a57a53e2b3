// Package authz decides whether a path may be served to a subject.
package authz

import (
	"strings"

	"github.com/spec-kit/taskboard/internal/domain"
)

// RouteClass is the classification of a navigable path.
type RouteClass string

const (
	RoutePublic    RouteClass = "public"
	RouteStaff     RouteClass = "staff"
	RouteManager   RouteClass = "manager"
	RouteProtected RouteClass = "protected"
)

// RouteTable is the static route configuration.
type RouteTable struct {
	Public          []string
	StaffPrefixes   []string
	ManagerPrefixes []string
	LoginPath       string
	Homes           map[domain.Role]string
}

// DefaultRouteTable mirrors the dashboard's route layout.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		Public:          []string{"/", "/login", "/register", "/forgot-password", "/health/live", "/health/ready", "/metrics", "/session", "/session/login", "/session/logout", "/session/refresh"},
		StaffPrefixes:   []string{"/staff"},
		ManagerPrefixes: []string{"/manager"},
		LoginPath:       "/login",
		Homes: map[domain.Role]string{
			domain.RoleStaff:   "/staff/dashboard",
			domain.RoleManager: "/manager/dashboard",
			domain.RoleAdmin:   "/admin/dashboard",
		},
	}
}

// Classify returns the class of path. Public paths and the login path match
// exactly; scoped prefixes match whole segments, so /staff covers /staff and
// /staff/tasks but not /staffing.
func (t RouteTable) Classify(path string) RouteClass {
	path = normalize(path)
	if path == normalize(t.loginPath()) {
		return RoutePublic
	}
	for _, p := range t.Public {
		if path == normalize(p) {
			return RoutePublic
		}
	}
	if hasAnyPrefix(path, t.StaffPrefixes) {
		return RouteStaff
	}
	if hasAnyPrefix(path, t.ManagerPrefixes) {
		return RouteManager
	}
	return RouteProtected
}

// Home returns the dashboard path for role, or the login path for unknown roles.
func (t RouteTable) Home(role domain.Role) string {
	if home, ok := t.Homes[role]; ok && home != "" {
		return home
	}
	return t.loginPath()
}

func (t RouteTable) loginPath() string {
	if t.LoginPath == "" {
		return "/login"
	}
	return t.LoginPath
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = normalize(prefix)
		if prefix == "/" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
