package core

import (
	"context"
	"errors"
	"testing"
)

// failingKV errors on every call.
type failingKV struct{ calls int }

func (f *failingKV) Get(context.Context, string) (string, bool, error) {
	f.calls++
	return "", false, errors.New("disk on fire")
}
func (f *failingKV) Set(context.Context, string, string) error {
	f.calls++
	return errors.New("disk on fire")
}
func (f *failingKV) Delete(context.Context, ...string) error {
	f.calls++
	return errors.New("disk on fire")
}
func (f *failingKV) Close() error { return nil }

// countingKV records how many Delete calls Clear issues.
type countingKV struct {
	*MemoryKV
	deletes int
}

func (c *countingKV) Delete(ctx context.Context, keys ...string) error {
	c.deletes++
	return c.MemoryKV.Delete(ctx, keys...)
}

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(NewMemoryKV(), nil)

	if _, ok := s.Token(ctx); ok {
		t.Fatal("fresh store should have no token")
	}
	s.SetToken(ctx, Credential{Token: "abc"})
	cred, ok := s.Token(ctx)
	if !ok || cred.Token != "abc" || cred.Type != DefaultTokenType {
		t.Fatalf("token = %+v ok=%v", cred, ok)
	}

	s.SetCachedIdentity(ctx, Identity{Username: "alice", Roles: []string{"ADMIN"}, Active: true})
	id, ok := s.CachedIdentity(ctx)
	if !ok || id.Username != "alice" || !id.IsAdmin() {
		t.Fatalf("identity = %+v ok=%v", id, ok)
	}
	if id.Active {
		t.Fatal("active flag is not cached")
	}

	s.SetToken(ctx, Credential{Token: ""})
	if _, ok := s.Token(ctx); ok {
		t.Fatal("empty token should read as absent")
	}
}

func TestTokenStoreClearIsOneOperation(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	s := NewTokenStore(kv, nil)
	s.SetToken(ctx, Credential{Token: "abc"})
	s.SetCachedIdentity(ctx, Identity{Username: "alice"})

	s.Clear(ctx)
	if kv.deletes != 1 {
		t.Fatalf("Clear issued %d deletes", kv.deletes)
	}
	if _, ok := s.Token(ctx); ok {
		t.Fatal("token survived Clear")
	}
	if _, ok := s.CachedIdentity(ctx); ok {
		t.Fatal("identity survived Clear")
	}
}

func TestTokenStoreSwallowsBackendFailures(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{}
	s := NewTokenStore(kv, nil)

	s.SetToken(ctx, Credential{Token: "abc"})
	s.SetCachedIdentity(ctx, Identity{Username: "alice"})
	s.Clear(ctx)
	if _, ok := s.Token(ctx); ok {
		t.Fatal("failed read should report absent")
	}
	if _, ok := s.CachedIdentity(ctx); ok {
		t.Fatal("failed read should report absent")
	}
	if kv.calls != 5 {
		t.Fatalf("expected every operation to reach the backend, got %d calls", kv.calls)
	}
	if !s.Available() {
		t.Fatal("a failing backend is still attached")
	}
}

func TestTokenStoreWithoutBackend(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(nil, nil)
	s.SetToken(ctx, Credential{Token: "abc"})
	s.Clear(ctx)
	if s.Available() {
		t.Fatal("no backend attached")
	}
	if _, ok := s.Token(ctx); ok {
		t.Fatal("writes without storage are dropped")
	}
}
