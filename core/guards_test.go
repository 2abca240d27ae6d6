package core

import (
	"context"
	"testing"
)

func TestGuardsTrackLatestPublish(t *testing.T) {
	s := NewSessionState()
	if Authenticated(s) {
		t.Fatal("fresh session is not authenticated")
	}
	s.Publish(&Identity{Username: "alice", Roles: []string{"USER"}})
	if !Authenticated(s) {
		t.Fatal("guard must see the publish immediately")
	}
	s.Publish(nil)
	if Authenticated(s) {
		t.Fatal("guard must see the logout immediately")
	}
}

func TestRoleGuardDeniesWithoutSession(t *testing.T) {
	s := NewSessionState()
	for _, role := range []string{"", RoleAdmin, "USER", "anything"} {
		if Authorized(s, role) {
			t.Fatalf("role %q passed without a session", role)
		}
	}
}

// A cached identity authorizes navigation before the back-end is asked.
// This is the accepted trade-off: guards read local state only, so a role
// revoked on the server keeps gating pages open until the next reconcile or login.
func TestGuardsTrustStaleCachedIdentity(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "USER")
	kv := NewMemoryKV()
	ctx := context.Background()
	_ = kv.Set(ctx, TokenKey, "t1")
	_ = kv.Set(ctx, UserKey, `{"username":"alice","roles":["ADMIN"]}`)

	sess := newTestSession(t, b, kv)
	if d := sess.Routes.Decide(sess.State, "/customers"); !d.Allow {
		t.Fatalf("stale ADMIN cache should still open /customers, got %+v", d)
	}
	if n := b.requestCount(); n != 0 {
		t.Fatalf("guards must not hit the network, saw %d requests", n)
	}

	if _, err := sess.Bank.Customers(ctx); err == nil {
		t.Fatal("the back-end remains the authority and must refuse")
	}
	if _, err := sess.Auth.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if d := sess.Routes.Decide(sess.State, "/customers"); d.Allow || d.Redirect != DashboardPath {
		t.Fatalf("after reconcile expected redirect to dashboard, got %+v", d)
	}
}

func TestRouteTableDecide(t *testing.T) {
	rt := DefaultRoutes()
	anon := NewSessionState()
	user := NewSessionState()
	user.Publish(&Identity{Username: "bob", Roles: []string{"USER"}})
	admin := NewSessionState()
	admin.Publish(&Identity{Username: "alice", Roles: []string{"USER", "ADMIN"}})

	cases := []struct {
		name    string
		session *SessionState
		path    string
		want    Decision
	}{
		{"login is public", anon, "/login", Decision{Allow: true}},
		{"register is public", anon, "/register", Decision{Allow: true}},
		{"root goes to login", admin, "/", Decision{Redirect: LoginPath}},
		{"unknown goes to login", admin, "/nowhere/at/all", Decision{Redirect: LoginPath}},
		{"dashboard needs login", anon, "/dashboard", Decision{Redirect: LoginPath}},
		{"dashboard for user", user, "/dashboard", Decision{Allow: true}},
		{"account detail for user", user, "/accounts/acc-1", Decision{Allow: true}},
		{"customers anon", anon, "/customers", Decision{Redirect: LoginPath}},
		{"customers user", user, "/customers", Decision{Redirect: DashboardPath}},
		{"customers admin", admin, "/customers", Decision{Allow: true}},
		{"customer new", admin, "/customers/new", Decision{Allow: true}},
		{"customer edit user", user, "/customers/3/edit", Decision{Redirect: DashboardPath}},
		{"new account user", user, "/accounts/new/saving", Decision{Redirect: DashboardPath}},
		{"new account admin", admin, "/accounts/new/current/", Decision{Allow: true}},
		{"operations", user, "/operations", Decision{Allow: true}},
		{"profile anon", anon, "/profile", Decision{Redirect: LoginPath}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rt.Decide(tc.session, tc.path); got != tc.want {
				t.Fatalf("Decide(%s) = %+v, want %+v", tc.path, got, tc.want)
			}
		})
	}
}

func TestRouteMatchPrefersDeclarationOrder(t *testing.T) {
	r, ok := DefaultRoutes().Match("/customers/new")
	if !ok || r.Pattern != "/customers/new" {
		t.Fatalf("got %+v", r)
	}
	r, ok = DefaultRoutes().Match("/customers/42")
	if !ok || r.Pattern != "/customers/:id" {
		t.Fatalf("got %+v", r)
	}
}
