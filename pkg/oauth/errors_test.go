package oauth

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthError_Is(t *testing.T) {
	err := fmt.Errorf("refresh: %w", &AuthError{Kind: ReauthorizationRequired, Code: "invalid_grant"})

	if !errors.Is(err, ErrReauthorizationRequired) {
		t.Error("expected wrapped error to match ErrReauthorizationRequired")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("kinds must not cross-match")
	}
}

func TestAuthError_Error(t *testing.T) {
	tests := []struct {
		err  *AuthError
		want string
	}{
		{&AuthError{Kind: InvalidCredentials}, "invalid credentials"},
		{&AuthError{Kind: ReauthorizationRequired, Code: "invalid_grant"}, "reauthorization required: invalid_grant"},
		{&AuthError{Kind: ReauthorizationRequired, Code: "invalid_grant", Description: "revoked"}, "reauthorization required: invalid_grant (revoked)"},
		{&AuthError{Kind: InvalidCredentials, Err: errors.New("boom")}, "invalid credentials: boom"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
