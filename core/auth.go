package core

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// RoleAdmin is the role the back-end grants to operators allowed to manage customers.
const RoleAdmin = "ADMIN"

// DefaultTokenType is assumed when the back-end omits the credential type tag.
const DefaultTokenType = "Bearer"

// Credential is the opaque bearer token issued by /auth/login.
type Credential struct {
	Token string
	Type  string
}

// Identity describes the signed-in user as last reported by the back-end.
// It is a cache: nothing here is verified client-side.
type Identity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Active   bool     `json:"active,omitempty"`
}

// HasRole reports whether role is in the identity's role set.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// IsAdmin is HasRole(RoleAdmin).
func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// ErrorKind classifies failures surfaced by the auth gateway and form validation.
type ErrorKind int

const (
	KindServer ErrorKind = iota
	KindUnauthorized
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	default:
		return "server"
	}
}

var (
	// ErrUnauthorized matches bad credentials or an expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation matches form input rejected before any request is sent.
	ErrValidation = errors.New("validation failed")
	// ErrServer matches any other failure talking to the back-end.
	ErrServer = errors.New("server error")
)

// AuthError carries a user-displayable message plus its classification.
type AuthError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 when no response was received
	Message string // shown to the user as-is
	Err     error  // underlying transport/decode error, if any
}

func (e *AuthError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

func validationError(message string) *AuthError {
	return &AuthError{Kind: KindValidation, Message: message}
}

// UserMessage returns the text a form should display for err.
func UserMessage(err error, fallback string) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.ServerMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}

// StatusCode maps an error to the HTTP status the console answers with.
func StatusCode(err error) int {
	var apiErr *APIError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}
