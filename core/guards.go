package core

import (
	"strings"
)

// Fallback routes for denied navigation.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Authenticated passes iff a session identity is present.
func Authenticated(s SessionReader) bool {
	return s.Current() != nil
}

// Authorized passes iff the session is authenticated and holds role.
// This is UI gating on a cached identity; the back-end enforces the real check.
func Authorized(s SessionReader, role string) bool {
	id := s.Current()
	return id != nil && id.HasRole(role)
}

// Route declares what a console page requires.
type Route struct {
	Pattern string // segments; ":name" matches any single segment
	Auth    bool
	Role    string // empty: no role required
}

// Decision is the outcome of a navigation check.
type Decision struct {
	Allow    bool
	Redirect string // set when Allow is false
}

// RouteTable evaluates navigation against the session on every call.
type RouteTable struct {
	routes []Route
}

// DefaultRoutes mirrors the console's page map.
func DefaultRoutes() *RouteTable {
	return NewRouteTable(
		Route{Pattern: "/login"},
		Route{Pattern: "/register"},
		Route{Pattern: "/dashboard", Auth: true},
		Route{Pattern: "/customers", Auth: true, Role: RoleAdmin},
		Route{Pattern: "/customers/new", Auth: true, Role: RoleAdmin},
		Route{Pattern: "/customers/:id/edit", Auth: true, Role: RoleAdmin},
		Route{Pattern: "/customers/:id", Auth: true, Role: RoleAdmin},
		Route{Pattern: "/accounts", Auth: true},
		Route{Pattern: "/accounts/new/:type", Auth: true, Role: RoleAdmin},
		Route{Pattern: "/accounts/:id", Auth: true},
		Route{Pattern: "/operations", Auth: true},
		Route{Pattern: "/change-password", Auth: true},
		Route{Pattern: "/profile", Auth: true},
	)
}

func NewRouteTable(routes ...Route) *RouteTable {
	return &RouteTable{routes: routes}
}

// Match returns the first route whose pattern matches path.
func (t *RouteTable) Match(path string) (Route, bool) {
	segs := splitPath(path)
	for _, r := range t.routes {
		if matchSegments(splitPath(r.Pattern), segs) {
			return r, true
		}
	}
	return Route{}, false
}

// Decide runs the guards for path. Unknown paths, including "/", go to the login page.
func (t *RouteTable) Decide(s SessionReader, path string) Decision {
	r, ok := t.Match(path)
	if !ok {
		return Decision{Redirect: LoginPath}
	}
	return Check(s, r)
}

// Check evaluates a single route's guards.
func Check(s SessionReader, r Route) Decision {
	if (r.Auth || r.Role != "") && !Authenticated(s) {
		return Decision{Redirect: LoginPath}
	}
	if r.Role != "" && !Authorized(s, r.Role) {
		return Decision{Redirect: DashboardPath}
	}
	return Decision{Allow: true}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}
