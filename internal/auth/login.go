package auth

import (
	"context"
	"fmt"
	"time"

	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	"github.com/google/uuid"
)

// DefaultLoginTimeout is how long the browser login waits for the redirect.
const DefaultLoginTimeout = 5 * time.Minute

// URLBuilder builds authorization URLs. *oauth.Client implements it.
type URLBuilder interface {
	AuthCodeURL(redirectURI, state string) string
}

// LoginFlow obtains an AuthorizationGrant through the user's browser. It is
// one possible source of grants for Manager.Login; callers with their own UI
// can build the grant themselves.
type LoginFlow struct {
	URLs    URLBuilder
	Port    int
	Timeout time.Duration

	// OpenBrowser defaults to the package OpenBrowser.
	OpenBrowser func(url string) error
	// OnURL, when set, receives the authorization URL before the browser is opened.
	OnURL func(url string)
}

// Authorize runs the browser round-trip and returns the grant.
func (f *LoginFlow) Authorize(ctx context.Context) (oauth.AuthorizationGrant, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server := NewCallbackServer(f.Port)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return oauth.AuthorizationGrant{}, err
	}
	defer server.Stop()

	state := uuid.NewString()
	authURL := f.URLs.AuthCodeURL(redirectURI, state)

	if f.OnURL != nil {
		f.OnURL(authURL)
	}
	open := f.OpenBrowser
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		logging.Warn("LoginFlow", "Could not open a browser, visit the URL manually: %v", err)
	}

	result, err := server.WaitForCallback(ctx)
	if err != nil {
		return oauth.AuthorizationGrant{}, fmt.Errorf("waiting for login redirect: %w", err)
	}
	if result.IsError() {
		return oauth.AuthorizationGrant{}, &oauth.AuthError{
			Kind:        oauth.InvalidCredentials,
			Code:        result.Error,
			Description: result.ErrorDescription,
		}
	}
	if result.State != state {
		return oauth.AuthorizationGrant{}, fmt.Errorf("login redirect state mismatch")
	}

	return oauth.AuthorizationGrant{Code: result.Code, RedirectURI: redirectURI}, nil
}
