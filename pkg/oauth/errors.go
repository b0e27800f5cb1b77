package oauth

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies failures that require user action.
type AuthErrorKind int

const (
	// InvalidCredentials means the authorization server rejected the client
	// credentials or the authorization code at login.
	InvalidCredentials AuthErrorKind = iota + 1

	// ReauthorizationRequired means the refresh token is missing, expired or
	// revoked. The user has to log in again.
	ReauthorizationRequired
)

func (k AuthErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid credentials"
	case ReauthorizationRequired:
		return "reauthorization required"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidCredentials matches any AuthError of kind InvalidCredentials via errors.Is.
	ErrInvalidCredentials = &AuthError{Kind: InvalidCredentials}

	// ErrReauthorizationRequired matches any AuthError of kind ReauthorizationRequired via errors.Is.
	ErrReauthorizationRequired = &AuthError{Kind: ReauthorizationRequired}
)

// AuthError is returned when the authorization server refuses a grant.
type AuthError struct {
	Kind AuthErrorKind

	// Code and Description carry the OAuth error fields when the server sent them.
	Code        string
	Description string
	Status      int

	Err error
}

func (e *AuthError) Error() string {
	msg := e.Kind.String()
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
		if e.Description != "" {
			msg = fmt.Sprintf("%s (%s)", msg, e.Description)
		}
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches on kind so sentinel comparisons work for any instance.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// TokenEndpointError describes a token endpoint failure that is not a refusal,
// such as a 5xx or an unparseable response. These are transient.
type TokenEndpointError struct {
	Status int
	Body   string
}

func (e *TokenEndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d", e.Status)
}

// IsReauthorizationRequired reports whether err requires a fresh login.
func IsReauthorizationRequired(err error) bool {
	return errors.Is(err, ErrReauthorizationRequired)
}

// IsInvalidCredentials reports whether err is a credential rejection.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
