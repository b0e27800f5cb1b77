package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradestation/internal/metrics"
	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	json "github.com/goccy/go-json"
)

const (
	subsystem = "Transport"

	// DefaultTimeout bounds ordinary REST requests. Streams have no timeout.
	DefaultTimeout = 30 * time.Second

	// StreamMediaType is the Accept header of streaming endpoints.
	StreamMediaType = "application/vnd.tradestation.streams.v2+json"

	maxErrorBody = 8192
)

// TokenProvider supplies bearer tokens. *auth.Manager implements it.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth.Token, error)
	ForceRefresh(ctx context.Context, stale string) (*oauth.Token, error)
}

// Transport sends authenticated requests to the brokerage API. After a 401 it
// refreshes the token once and replays the request once. It holds no token
// state of its own.
type Transport struct {
	baseURL      string
	tokens       TokenProvider
	httpClient   *http.Client
	streamClient *http.Client
	userAgent    string
	metrics      *metrics.Metrics
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the client used for REST requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = c
	}
}

// WithStreamClient sets the client used for streaming requests. It should have
// no overall timeout.
func WithStreamClient(c *http.Client) Option {
	return func(t *Transport) {
		t.streamClient = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// New creates a Transport for baseURL.
func New(baseURL string, tokens TokenProvider, opts ...Option) *Transport {
	t := &Transport{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
		userAgent:    "tradestation-go",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the API base URL requests are resolved against.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// URL resolves path and query against the base URL.
func (t *Transport) URL(path string, query url.Values) string {
	u := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do sends req with a bearer token. A 2xx response is returned open; any
// other outcome is an error and the body is already closed.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	return t.send(req, t.httpClient)
}

// DoJSON sends in (when non-nil) as a JSON body and decodes a JSON response
// into out (when non-nil).
func (t *Transport) DoJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.URL(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Stream opens a long-lived streaming GET and returns its body. The caller
// must close it. Authentication and the single 401 retry apply as for Do.
func (t *Transport) Stream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", StreamMediaType)

	resp, err := t.send(req, t.streamClient)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (t *Transport) send(req *http.Request, client *http.Client) (*http.Response, error) {
	ctx := req.Context()

	if err := makeReplayable(req); err != nil {
		return nil, err
	}

	tok, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.attempt(req, client, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		t.metrics.RecordAuthRetry()
		logging.Debug(subsystem, "%s %s returned 401, refreshing token and retrying once", req.Method, req.URL.Path)

		tok, err = t.tokens.ForceRefresh(ctx, tok.AccessToken)
		if err != nil {
			return nil, err
		}

		resp, err = t.attempt(req, client, tok.AccessToken)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			body := readErrorBody(resp)
			return nil, &TransportError{
				Kind:   AuthExpiredRetried,
				Method: req.Method,
				URL:    redact(req.URL),
				Status: resp.StatusCode,
				Body:   body,
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp)
		return nil, &TransportError{
			Kind:   ServerError,
			Method: req.Method,
			URL:    redact(req.URL),
			Status: resp.StatusCode,
			Body:   body,
		}
	}
	return resp, nil
}

func (t *Transport) attempt(orig *http.Request, client *http.Client, accessToken string) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if orig.GetBody != nil {
		body, err := orig.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		req.Body = body
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.metrics.RecordRequest(0)
		return nil, &TransportError{
			Kind:   Network,
			Method: req.Method,
			URL:    redact(req.URL),
			Cause:  classifyNetwork(err),
			Err:    err,
		}
	}
	t.metrics.RecordRequest(resp.StatusCode)
	return resp, nil
}

// makeReplayable buffers a body that cannot be re-read, so the request can be
// sent a second time after a refresh.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to buffer request body: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(data))
}

// redact drops the query string, which may carry account identifiers.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
