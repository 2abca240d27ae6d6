package core

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionStatus summarizes local session state for `bankctl status` and the console.
type SessionStatus struct {
	Backend       string     `json:"backend"`
	Available     bool       `json:"storage_available"`
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	Roles         []string   `json:"roles,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Expired       bool       `json:"expired"`
}

// CollectSessionStatus reads the store and the session; no network call.
func CollectSessionStatus(ctx context.Context, backend string, tokens *TokenStore, session SessionReader, now time.Time) SessionStatus {
	st := SessionStatus{Backend: backend, Available: tokens.Available()}
	if id := session.Current(); id != nil {
		st.Authenticated = true
		st.Username = id.Username
		st.Roles = id.Roles
	}
	if cred, ok := tokens.Token(ctx); ok {
		if exp, ok := TokenExpiry(cred.Token); ok {
			st.ExpiresAt = &exp
			st.Expired = !now.Before(exp)
		}
	}
	return st
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The result is a display hint only; the back-end decides whether the token is valid.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
