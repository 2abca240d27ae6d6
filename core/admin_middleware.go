package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireLogin redirects to the login page unless the session is authenticated.
// The check runs on every request; nothing is cached between navigations.
func RequireLogin(session SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authenticated(session) {
			deny(c, http.StatusUnauthorized, loginRedirectTarget(c.Request))
			return
		}
		c.Next()
	}
}

// RequireRole sends authenticated users without role to the dashboard and
// anonymous users to the login page.
func RequireRole(session SessionReader, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := Check(session, Route{Auth: true, Role: role})
		if !d.Allow {
			status := http.StatusForbidden
			target := d.Redirect
			if d.Redirect == LoginPath {
				status = http.StatusUnauthorized
				target = loginRedirectTarget(c.Request)
			}
			deny(c, status, target)
			return
		}
		c.Next()
	}
}

// deny answers API calls with a JSON error and page navigations with a redirect.
func deny(c *gin.Context, status int, target string) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		code := "UNAUTHORIZED"
		msg := "login required"
		if status == http.StatusForbidden {
			code = "FORBIDDEN"
			msg = "insufficient role"
		}
		respondError(c, status, code, msg)
		c.Abort()
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func loginRedirectTarget(r *http.Request) string {
	if r == nil || r.URL == nil {
		return LoginPath
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return LoginPath
	}
	next := strings.TrimSpace(r.URL.RequestURI())
	if !localPath(next) {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// safeNext returns next when it is a local path, otherwise the dashboard.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !localPath(next) || strings.HasPrefix(next, LoginPath) {
		return DashboardPath
	}
	return next
}

// localPath accepts only same-origin absolute paths. Browsers read a
// backslash as a slash, so "/\host" is treated like "//host".
func localPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsRune(p, '\\') {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
