package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const (
	// DefaultHTTPTimeout is the default timeout for token endpoint requests.
	DefaultHTTPTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for diagnostics.
	maxErrorBody = 4096
)

// Client performs the OAuth 2.0 authorization code and refresh token grants
// against a single authorization server.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	credential Credential
	endpoint   Endpoint
	audience   string
	scopes     []string
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock overrides the time source used to compute token expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithAudience sets the audience parameter sent on the authorization redirect.
func WithAudience(audience string) ClientOption {
	return func(c *Client) {
		c.audience = audience
	}
}

// WithScopes sets the scopes requested on the authorization redirect.
func WithScopes(scopes ...string) ClientOption {
	return func(c *Client) {
		c.scopes = scopes
	}
}

// NewClient creates a new OAuth client for the given credential and endpoint.
func NewClient(credential Credential, endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		now:        time.Now,
		credential: credential,
		endpoint:   endpoint,
		audience:   DefaultAudience,
		scopes:     DefaultScopes,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Credential returns the client credential.
func (c *Client) Credential() Credential {
	return c.credential
}

func (c *Client) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.credential.ClientID,
		ClientSecret: c.credential.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.endpoint.AuthURL,
			TokenURL:  c.endpoint.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      c.scopes,
	}
}

// AuthCodeURL builds the URL the user visits to grant access.
func (c *Client) AuthCodeURL(redirectURI, state string) string {
	opts := []oauth2.AuthCodeOption{}
	if c.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.audience))
	}
	return c.config(redirectURI).AuthCodeURL(state, opts...)
}

// ExchangeCode trades an authorization code for a token.
// A refusal from the server yields an AuthError of kind InvalidCredentials.
func (c *Client) ExchangeCode(ctx context.Context, grant AuthorizationGrant) (*Token, error) {
	if grant.Code == "" {
		return nil, &AuthError{Kind: InvalidCredentials, Code: "invalid_request", Description: "empty authorization code"}
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", grant.Code)
	data.Set("redirect_uri", grant.RedirectURI)

	return c.doTokenRequest(ctx, data, InvalidCredentials)
}

// Refresh exchanges a refresh token for a new token. A refusal yields an
// AuthError of kind ReauthorizationRequired. When the response omits
// refresh_token the returned token keeps the one that was sent.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, &AuthError{Kind: ReauthorizationRequired, Description: "no refresh token"}
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	token, err := c.doTokenRequest(ctx, data, ReauthorizationRequired)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) doTokenRequest(ctx context.Context, data url.Values, refusal AuthErrorKind) (*Token, error) {
	data.Set("client_id", c.credential.ClientID)
	data.Set("client_secret", c.credential.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Token request failed",
			"grant_type", data.Get("grant_type"),
			"status", resp.StatusCode)
		return nil, classifyFailure(resp.StatusCode, body, refusal)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, &TokenEndpointError{Status: resp.StatusCode, Body: "response has no access_token"}
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}

	token.SetExpiresAtFromExpiresIn(c.now())

	return &token, nil
}

// classifyFailure turns a non-200 token response into an error. 4xx answers
// are refusals of the grant; anything else is treated as transient.
func classifyFailure(status int, body []byte, refusal AuthErrorKind) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		kind := refusal
		if er.Error == "invalid_client" {
			kind = InvalidCredentials
		}
		return &AuthError{
			Kind:        kind,
			Code:        er.Error,
			Description: er.ErrorDescription,
			Status:      status,
		}
	}

	return &TokenEndpointError{Status: status, Body: string(body)}
}
