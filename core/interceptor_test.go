package core

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestBearerHeaderFollowsTokenStore(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "ADMIN")
	sess := newTestSession(t, b, NewMemoryKV())
	ctx := context.Background()

	// no token stored: header absent
	_, _ = sess.Auth.Profile(ctx)
	if got := b.authHeaders("/api/auth/profile"); len(got) != 1 || got[0] != "" {
		t.Fatalf("expected no Authorization header, got %q", got)
	}

	if _, err := sess.Auth.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := sess.Auth.Profile(ctx); err != nil {
		t.Fatalf("profile: %v", err)
	}
	got := b.authHeaders("/api/auth/profile")
	if len(got) != 2 || got[1] != "Bearer t1" {
		t.Fatalf("expected exact bearer token, got %q", got)
	}

	// the token is read on every call, so logout takes effect immediately
	sess.Auth.Logout(ctx)
	_, _ = sess.Auth.Profile(ctx)
	got = b.authHeaders("/api/auth/profile")
	if len(got) != 3 || got[2] != "" {
		t.Fatalf("header should be gone after logout, got %q", got)
	}
}

func TestBearerHeaderUsesStoreNotSession(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "ADMIN")
	kv := NewMemoryKV()
	sess := newTestSession(t, b, kv)
	ctx := context.Background()

	// a token written behind the session's back is still attached
	_ = kv.Set(ctx, TokenKey, "t1")
	if sess.State.Current() != nil {
		t.Fatal("session should still be none")
	}
	if _, err := sess.Auth.Profile(ctx); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got := b.authHeaders("/api/auth/profile"); got[len(got)-1] != "Bearer t1" {
		t.Fatalf("got %q", got)
	}
}

func TestTransportMetrics(t *testing.T) {
	b := newStubBackend(t)
	b.addUser("alice", "pw", "t1", "ADMIN")
	reg := prometheus.NewRegistry()
	sess := NewSession(context.Background(), SessionOptions{
		Config:     Config{APIURL: b.apiURL(), TokenStore: "memory"},
		KV:         NewMemoryKV(),
		Registerer: reg,
		Logger:     zap.NewNop(),
	})
	ctx := context.Background()

	_, _ = sess.Auth.Login(ctx, "alice", "bad")
	_, _ = sess.Auth.Login(ctx, "alice", "pw")

	counts := map[string]float64{}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "bankconsole_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				key += l.GetName() + "=" + l.GetValue() + ","
			}
			counts[key] = m.GetCounter().GetValue()
		}
	}
	for _, want := range []string{"method=POST,status=401,", "method=POST,status=200,"} {
		if counts[want] != 1 {
			t.Fatalf("counter %s = %v (all: %v)", want, counts[want], counts)
		}
	}
}
