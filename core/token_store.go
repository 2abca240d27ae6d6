package core

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Storage keys for the credential and the cached identity.
const (
	TokenKey = "auth-token"
	UserKey  = "auth-user"
)

// TokenStore persists the credential and the cached identity.
// Storage failures never surface to callers: reads report absent and writes
// are dropped, mirroring a client running without durable storage.
type TokenStore struct {
	kv     KVStore // nil: storage unavailable
	logger *zap.Logger
}

func NewTokenStore(kv KVStore, logger *zap.Logger) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{kv: kv, logger: logger}
}

// Available reports whether a durable backend is attached.
func (s *TokenStore) Available() bool {
	return s != nil && s.kv != nil
}

// Token returns the persisted credential. An empty stored token counts as absent.
func (s *TokenStore) Token(ctx context.Context) (Credential, bool) {
	raw, ok := s.get(ctx, TokenKey)
	if !ok || raw == "" {
		return Credential{}, false
	}
	return Credential{Token: raw, Type: DefaultTokenType}, true
}

// SetToken overwrites the persisted credential without inspecting it.
func (s *TokenStore) SetToken(ctx context.Context, cred Credential) {
	s.set(ctx, TokenKey, cred.Token)
}

// CachedIdentity returns the identity stored at the last login.
func (s *TokenStore) CachedIdentity(ctx context.Context) (Identity, bool) {
	raw, ok := s.get(ctx, UserKey)
	if !ok || raw == "" {
		return Identity{}, false
	}
	var rec cachedIdentity
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("token store: discarding unreadable cached identity", zap.Error(err))
		return Identity{}, false
	}
	return Identity{Username: rec.Username, Roles: rec.Roles}, true
}

// SetCachedIdentity stores {username, roles}; the active flag is not cached.
func (s *TokenStore) SetCachedIdentity(ctx context.Context, id Identity) {
	b, err := json.Marshal(cachedIdentity{Username: id.Username, Roles: id.Roles})
	if err != nil {
		s.logger.Warn("token store: encode identity", zap.Error(err))
		return
	}
	s.set(ctx, UserKey, string(b))
}

// Clear removes credential and identity in a single backend operation.
func (s *TokenStore) Clear(ctx context.Context) {
	if !s.Available() {
		return
	}
	if err := s.kv.Delete(ctx, TokenKey, UserKey); err != nil {
		s.logger.Warn("token store: clear failed", zap.Error(err))
	}
}

type cachedIdentity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (s *TokenStore) get(ctx context.Context, key string) (string, bool) {
	if !s.Available() {
		return "", false
	}
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("token store: read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

func (s *TokenStore) set(ctx context.Context, key, value string) {
	if !s.Available() {
		return
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.logger.Warn("token store: write dropped", zap.String("key", key), zap.Error(err))
	}
}
