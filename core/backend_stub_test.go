package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubUser struct {
	password string
	token    string
	roles    []string
}

// stubBackend answers the auth and banking endpoints the way the real
// back-end does: bad credentials are 401 on login and 400 on change-password.
type stubBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	users    map[string]*stubUser
	auth     map[string][]string // path -> Authorization headers seen
	requests int
	credits  []map[string]any
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	b := &stubBackend{
		t:     t,
		users: map[string]*stubUser{},
		auth:  map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.login)
	mux.HandleFunc("POST /api/auth/signup", b.signup)
	mux.HandleFunc("POST /api/auth/changePassword", b.changePassword)
	mux.HandleFunc("GET /api/auth/profile", b.profile)
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.caller(w, r); !ok {
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "acc-1", "balance": 100.25, "type": "CurrentAccount", "status": "ACTIVATED", "customerDTO": map[string]any{"id": 1, "name": "Alice", "email": "alice@example.com"}},
			{"id": "acc-2", "balance": "50.50", "type": "SavingAccount", "status": "CREATED"},
		})
	})
	mux.HandleFunc("GET /api/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.caller(w, r); !ok {
			return
		}
		if r.PathValue("id") != "acc-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Account not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "acc-1", "balance": 100.25, "type": "CurrentAccount", "status": "ACTIVATED", "overDraft": 500, "customerDTO": map[string]any{"id": 1, "name": "Alice", "email": "alice@example.com"}})
	})
	mux.HandleFunc("GET /api/customers", func(w http.ResponseWriter, r *http.Request) {
		u, ok := b.caller(w, r)
		if !ok {
			return
		}
		if !containsRole(u.roles, RoleAdmin) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access denied"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "Alice", "email": "alice@example.com"},
			{"id": 2, "name": "Bobby", "email": "bobby@example.com"},
			{"id": 3, "name": "Carol", "email": "carol@example.com"},
		})
	})
	mux.HandleFunc("GET /api/accounts/{id}/operations/page", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.caller(w, r); !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accountId":   r.PathValue("id"),
			"balance":     "100.25",
			"currentPage": 0,
			"totalPages":  2,
			"pageSize":    10,
			"accountOperationDTOS": []map[string]any{
				{"id": 7, "operationDate": "2024-01-02", "amount": 10, "type": "CREDIT", "description": "salary"},
			},
		})
	})
	mux.HandleFunc("POST /api/accounts/{id}/operations/credit", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.caller(w, r); !ok {
			return
		}
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		body["accountId"] = r.PathValue("id")
		b.mu.Lock()
		b.credits = append(b.credits, body)
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests++
		b.auth[r.URL.Path] = append(b.auth[r.URL.Path], r.Header.Get("Authorization"))
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *stubBackend) addUser(username, password, token string, roles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = &stubUser{password: password, token: token, roles: roles}
}

func (b *stubBackend) apiURL() string { return b.srv.URL + "/api" }

func (b *stubBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func (b *stubBackend) authHeaders(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.auth[path]...)
}

func (b *stubBackend) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	u, ok := b.users[req.Username]
	b.mu.Unlock()
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": u.token, "type": "Bearer", "username": req.Username, "roles": u.roles})
}

func (b *stubBackend) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username is already taken"})
		return
	}
	if req.Password != req.ConfirmedPassword {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Passwords do not match"})
		return
	}
	b.users[req.Username] = &stubUser{password: req.Password, token: "t-" + req.Username, roles: []string{"USER"}}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

func (b *stubBackend) changePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := b.caller(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.OldPassword != u.password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Old password is incorrect"})
		return
	}
	u.password = req.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (b *stubBackend) profile(w http.ResponseWriter, r *http.Request) {
	u, ok := b.caller(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, candidate := range b.users {
		if candidate == u {
			writeJSON(w, http.StatusOK, map[string]any{"username": name, "roles": u.roles, "active": true})
			return
		}
	}
}

// caller resolves the bearer token to a user or answers 401.
func (b *stubBackend) caller(w http.ResponseWriter, r *http.Request) (*stubUser, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if found {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, u := range b.users {
			if u.token == token {
				return u, true
			}
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// newTestSession builds a session against the stub; kv may be nil.
func newTestSession(t *testing.T, b *stubBackend, kv KVStore) *Session {
	t.Helper()
	return NewSession(context.Background(), SessionOptions{
		Config: Config{APIURL: b.apiURL(), TokenStore: "memory", HTTPTimeout: 5 * time.Second},
		KV:     kv,
		Logger: zap.NewNop(),
	})
}
