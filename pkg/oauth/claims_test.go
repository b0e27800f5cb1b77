package oauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParseClaims(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "auth0|123",
		"iss":   "https://signin.example.com/",
		"email": "trader@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("not-verified"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	claims, err := ParseClaims(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "auth0|123" || claims.Email != "trader@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected expiry %v", claims.ExpiresAt)
	}

	if _, err := ParseClaims("opaque-token"); err == nil {
		t.Error("expected error for non-JWT token")
	}
	if _, err := ParseClaims(""); err == nil {
		t.Error("expected error for empty token")
	}
}
