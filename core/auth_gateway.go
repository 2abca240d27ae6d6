package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Fallback messages used when the back-end gives no error text.
const (
	msgLoginFailed    = "Invalid username or password"
	msgRegisterFailed = "Registration failed. Please try again."
	msgPasswordFailed = "Failed to change password. Please try again."
	msgProfileFailed  = "Error loading user profile"
)

// AuthGateway talks to the identity endpoints and keeps the token store and
// session state in step on login and logout.
type AuthGateway struct {
	// commitMu makes each store write plus its publish one step, so a
	// concurrent Logout cannot land between them.
	commitMu sync.Mutex

	api     *APIClient
	tokens  *TokenStore
	session *SessionState
	logger  *zap.Logger
}

func NewAuthGateway(api *APIClient, tokens *TokenStore, session *SessionState, logger *zap.Logger) *AuthGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGateway{api: api, tokens: tokens, session: session, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string   `json:"token"`
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type signupRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	ConfirmedPassword string `json:"confirmedPassword"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Login exchanges credentials for a token. Only a successful exchange touches
// the token store and the session; a failure leaves both as they were.
func (g *AuthGateway) Login(ctx context.Context, username, password string) (Identity, error) {
	var resp loginResponse
	if err := g.api.Post(ctx, "/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		g.logger.Info("login rejected", zap.String("username", username), zap.Error(err))
		return Identity{}, classify(err, msgLoginFailed, true)
	}
	if resp.Token == "" {
		return Identity{}, &AuthError{Kind: KindServer, Status: http.StatusOK, Message: "login response carried no token"}
	}

	id := Identity{Username: resp.Username, Roles: resp.Roles}
	if id.Username == "" {
		id.Username = username
	}
	tokenType := resp.Type
	if tokenType == "" {
		tokenType = DefaultTokenType
	}

	g.commitMu.Lock()
	g.tokens.SetToken(ctx, Credential{Token: resp.Token, Type: tokenType})
	g.tokens.SetCachedIdentity(ctx, id)
	g.session.Publish(&id)
	g.commitMu.Unlock()
	g.logger.Info("login succeeded", zap.String("username", id.Username), zap.Strings("roles", id.Roles))
	return id, nil
}

// Register creates an account. The back-end is the only authority on
// confirmation matching and username availability.
func (g *AuthGateway) Register(ctx context.Context, username, password, confirmation string) error {
	req := signupRequest{Username: username, Password: password, ConfirmedPassword: confirmation}
	if err := g.api.Post(ctx, "/auth/signup", req, nil); err != nil {
		return classify(err, msgRegisterFailed, false)
	}
	g.logger.Info("registration accepted", zap.String("username", username))
	return nil
}

// ChangePassword relies on the transport to attach the current credential.
func (g *AuthGateway) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := g.api.Post(ctx, "/auth/changePassword", req, nil); err != nil {
		return classify(err, msgPasswordFailed, true)
	}
	return nil
}

// Profile fetches the server's view of the signed-in user. It does not touch the session.
func (g *AuthGateway) Profile(ctx context.Context) (Identity, error) {
	var id Identity
	if err := g.api.Get(ctx, "/auth/profile", &id); err != nil {
		return Identity{}, classify(err, msgProfileFailed, false)
	}
	return id, nil
}

// Reconcile fetches the profile and publishes it, refreshing the cached identity.
// Nothing changes when the fetch fails or no credential is stored.
func (g *AuthGateway) Reconcile(ctx context.Context) (Identity, error) {
	id, err := g.Profile(ctx)
	if err != nil {
		return Identity{}, err
	}
	g.commitMu.Lock()
	defer g.commitMu.Unlock()
	if _, ok := g.tokens.Token(ctx); !ok {
		return id, &AuthError{Kind: KindUnauthorized, Message: "signed out while the profile was loading"}
	}
	g.tokens.SetCachedIdentity(ctx, id)
	g.session.Publish(&id)
	return id, nil
}

// Logout is local only: the stored credential is dropped, then the session cleared.
func (g *AuthGateway) Logout(ctx context.Context) {
	g.commitMu.Lock()
	g.tokens.Clear(ctx)
	g.session.Publish(nil)
	g.commitMu.Unlock()
	g.logger.Info("logged out")
}

// classify maps a transport or API error onto the auth error taxonomy.
// credentialCheck marks endpoints where the back-end answers a wrong password with 400.
func classify(err error, fallback string, credentialCheck bool) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &AuthError{Kind: KindServer, Message: fallback, Err: err}
	}
	msg := apiErr.ServerMessage()
	if msg == "" {
		msg = fallback
	}
	kind := KindServer
	switch {
	case apiErr.Status == http.StatusUnauthorized, apiErr.Status == http.StatusForbidden:
		kind = KindUnauthorized
	case apiErr.Status == http.StatusBadRequest && credentialCheck:
		kind = KindUnauthorized
	}
	return &AuthError{Kind: kind, Status: apiErr.Status, Message: strings.TrimSpace(msg), Err: apiErr}
}
