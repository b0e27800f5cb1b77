package tradestation

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"tradestation/internal/auth"
	"tradestation/internal/brokerage"
	"tradestation/internal/config"
	"tradestation/internal/metrics"
	"tradestation/internal/stream"
	"tradestation/internal/transport"
	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "Client"

// Client is the entry point for callers: it owns the token manager, the
// authenticated transport and every stream session opened through it.
type Client struct {
	cfg       config.Config
	oauth     *oauth.Client
	manager   *auth.Manager
	transport *transport.Transport
	brokerage *brokerage.Client
	metrics   *metrics.Metrics

	mu      sync.Mutex
	streams map[string]*stream.Session
}

type options struct {
	httpClient   *http.Client
	streamClient *http.Client
	registry     *prometheus.Registry
	store        *auth.Store
	userAgent    string
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the client used for token and REST requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStreamClient sets the client used for streaming requests.
func WithStreamClient(c *http.Client) Option {
	return func(o *options) { o.streamClient = c }
}

// WithRegistry registers the client's metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithStore overrides the token store derived from Config.TokenFile.
func WithStore(s *auth.Store) Option {
	return func(o *options) { o.store = s }
}

// WithUserAgent sets the User-Agent of API requests.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// New builds a Client from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	store := o.store
	if store == nil {
		if cfg.TokenFile != "" {
			var err error
			store, err = auth.NewFileStore(cfg.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("failed to open token store: %w", err)
			}
		} else {
			store = auth.NewMemoryStore()
		}
	}

	m := metrics.New(o.registry)

	oauthOpts := []oauth.ClientOption{
		oauth.WithLogger(logging.Logger().With("subsystem", "OAuth")),
	}
	if cfg.Audience != "" {
		oauthOpts = append(oauthOpts, oauth.WithAudience(cfg.Audience))
	}
	if len(cfg.Scopes) > 0 {
		oauthOpts = append(oauthOpts, oauth.WithScopes(cfg.Scopes...))
	}
	if o.httpClient != nil {
		oauthOpts = append(oauthOpts, oauth.WithHTTPClient(o.httpClient))
	}
	oc := oauth.NewClient(cfg.Credential(), cfg.Endpoint(), oauthOpts...)

	managerOpts := []auth.ManagerOption{auth.WithStore(store), auth.WithMetrics(m)}
	if cfg.ExpiryMargin > 0 {
		managerOpts = append(managerOpts, auth.WithExpiryMargin(cfg.ExpiryMargin))
	}
	manager := auth.NewManager(oc, managerOpts...)

	transportOpts := []transport.Option{transport.WithMetrics(m)}
	if o.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(o.httpClient))
	}
	if o.streamClient != nil {
		transportOpts = append(transportOpts, transport.WithStreamClient(o.streamClient))
	}
	if o.userAgent != "" {
		transportOpts = append(transportOpts, transport.WithUserAgent(o.userAgent))
	}
	tr := transport.New(cfg.BaseURL(), manager, transportOpts...)

	logging.Debug(subsystem, "Client for %s environment at %s", cfg.Environment, cfg.BaseURL())

	return &Client{
		cfg:       cfg,
		oauth:     oc,
		manager:   manager,
		transport: tr,
		brokerage: brokerage.NewClient(tr),
		metrics:   m,
		streams:   make(map[string]*stream.Session),
	}, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Manager returns the token manager.
func (c *Client) Manager() *auth.Manager {
	return c.manager
}

// Transport returns the authenticated transport.
func (c *Client) Transport() *transport.Transport {
	return c.transport
}

// Brokerage returns the REST client for accounts, orders and market data.
func (c *Client) Brokerage() *brokerage.Client {
	return c.brokerage
}

// Metrics returns the client's collectors.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Login exchanges an authorization grant for a token.
func (c *Client) Login(ctx context.Context, grant oauth.AuthorizationGrant) (*oauth.Token, error) {
	return c.manager.Login(ctx, grant)
}

// LoginAsync is the non-blocking form of Login.
func (c *Client) LoginAsync(ctx context.Context, grant oauth.AuthorizationGrant) <-chan auth.TokenResult {
	return c.manager.LoginAsync(ctx, grant)
}

// LoginWithBrowser runs the browser authorization round-trip on the
// configured callback port and logs in with the resulting grant. onURL, when
// non-nil, receives the authorization URL.
func (c *Client) LoginWithBrowser(ctx context.Context, onURL func(string)) (*oauth.Token, error) {
	flow := &auth.LoginFlow{URLs: c.oauth, Port: c.cfg.Port, OnURL: onURL}
	grant, err := flow.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	return c.Login(ctx, grant)
}

// Token returns a token valid for at least the expiry margin.
func (c *Client) Token(ctx context.Context) (*oauth.Token, error) {
	return c.manager.Token(ctx)
}

// TokenAsync is the non-blocking form of Token.
func (c *Client) TokenAsync(ctx context.Context) <-chan auth.TokenResult {
	return c.manager.TokenAsync(ctx)
}

// Logout forgets the current token.
func (c *Client) Logout() error {
	return c.manager.Logout()
}

// OpenStream opens a stream session and returns once the handshake succeeded.
// Events are delivered to handler in the background until CloseStream, ctx
// cancellation or retry exhaustion.
func (c *Client) OpenStream(ctx context.Context, req stream.Request, handler stream.Handler) (*stream.Session, error) {
	s := c.newSession(req, handler)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	c.track(s)
	go func() {
		<-s.Done()
		c.untrack(s)
	}()
	return s, nil
}

// RunStream opens a stream session and blocks until it ends.
func (c *Client) RunStream(ctx context.Context, req stream.Request, handler stream.Handler) error {
	s := c.newSession(req, handler)
	c.track(s)
	defer c.untrack(s)
	return s.Run(ctx)
}

// StreamBars opens a bar chart stream.
func (c *Client) StreamBars(ctx context.Context, req brokerage.BarStreamRequest, handler stream.Handler) (*stream.Session, error) {
	sr, err := req.StreamRequest()
	if err != nil {
		return nil, err
	}
	return c.OpenStream(ctx, sr, handler)
}

// CloseStream closes a session opened by this client.
func (c *Client) CloseStream(s *stream.Session) {
	if s == nil {
		return
	}
	s.Close()
}

// Streams returns the sessions currently open.
func (c *Client) Streams() []*stream.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*stream.Session, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s)
	}
	return out
}

// Close closes every open stream and waits for them to stop.
func (c *Client) Close() {
	sessions := c.Streams()
	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		<-s.Done()
	}
}

func (c *Client) newSession(req stream.Request, handler stream.Handler) *stream.Session {
	sc := c.cfg.Stream
	return stream.NewSession(c.transport, req, handler,
		stream.WithMetrics(c.metrics),
		stream.WithConfig(stream.Config{
			HeartbeatTimeout: sc.HeartbeatTimeout,
			MaxRetries:       sc.MaxRetries,
			InitialBackoff:   sc.InitialBackoff,
			MaxBackoff:       sc.MaxBackoff,
			Multiplier:       2,
			Jitter:           0.2,
			MaxFragmentSize:  sc.MaxFragmentSize,
		}))
}

func (c *Client) track(s *stream.Session) {
	c.mu.Lock()
	c.streams[s.ID()] = s
	c.mu.Unlock()
}

func (c *Client) untrack(s *stream.Session) {
	c.mu.Lock()
	delete(c.streams, s.ID())
	c.mu.Unlock()
}
