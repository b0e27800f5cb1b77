package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiresIn is the lifetime assumed when a token response omits expires_in.
const DefaultExpiresIn = 1200

// DefaultExpiryMargin is how long before expiry a token stops being handed out.
// This accounts for clock skew and request latency.
const DefaultExpiryMargin = 60 * time.Second

// DefaultAudience is the audience requested during the authorization redirect.
const DefaultAudience = "https://api.tradestation.com"

// DefaultScopes are the scopes requested at login. offline_access is what
// yields a refresh token.
var DefaultScopes = []string{"openid", "profile", "offline_access", "MarketData", "ReadAccount", "Trade"}

// Credential identifies the registered application.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// Valid reports whether both halves of the credential are present.
func (c Credential) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Endpoint holds the authorization server URLs.
type Endpoint struct {
	AuthURL  string
	TokenURL string
}

// AuthorizationGrant is the one-time code returned by the authorization
// redirect, together with the redirect URI it was issued for.
type AuthorizationGrant struct {
	Code        string
	RedirectURI string
}

// Token represents an OAuth access token with associated metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds (from token response).
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the calculated expiration timestamp.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`
}

// ExpiresWithin reports whether the token is expired at now, or will be within margin.
// A token with no access token is always considered expired.
func (t *Token) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(t.ExpiresAt)
}

// Lifetime is the validity period the server granted, or zero when it is unknown.
func (t *Token) Lifetime() time.Duration {
	if t == nil || t.ExpiresIn <= 0 {
		return 0
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// SetExpiresAtFromExpiresIn calculates ExpiresAt relative to now.
// A missing expires_in falls back to DefaultExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn(now time.Time) {
	if !t.ExpiresAt.IsZero() {
		return
	}
	if t.ExpiresIn <= 0 {
		t.ExpiresIn = DefaultExpiresIn
	}
	t.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// Clone returns a copy that callers may keep without sharing state with the store.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}
