package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradestation/internal/metrics"
	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	managerSubsystem = "TokenManager"

	// DefaultRefreshTimeout bounds a single refresh round-trip. The refresh runs
	// detached from any one caller, so it needs its own deadline.
	DefaultRefreshTimeout = 30 * time.Second

	// keepFreshRetryDelay is the pause after a transient proactive refresh failure.
	keepFreshRetryDelay = 5 * time.Second

	refreshKey = "refresh"
)

// State is the authentication state of a Manager.
type State int

const (
	// StateUnauthenticated means no usable token is held; a login is required.
	StateUnauthenticated State = iota
	// StateAuthenticated means a token is held.
	StateAuthenticated
	// StateRefreshing means a refresh round-trip is in flight.
	StateRefreshing
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateRefreshing:
		return "Refreshing"
	default:
		return "Unknown"
	}
}

// Grantor exchanges grants at the authorization server. *oauth.Client implements it.
type Grantor interface {
	ExchangeCode(ctx context.Context, grant oauth.AuthorizationGrant) (*oauth.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error)
}

// TokenResult is delivered by the asynchronous variants.
type TokenResult struct {
	Token *oauth.Token
	Err   error
}

// Manager keeps a valid access token available to any number of goroutines.
//
// Token returns the stored token while it is valid for at least the expiry
// margin. Inside the margin, the first caller starts a refresh and every
// concurrent caller attaches to that same refresh, so N callers cost one
// token endpoint round-trip and all observe the same token or the same error.
type Manager struct {
	grantor        Grantor
	store          *Store
	now            func() time.Time
	margin         time.Duration
	refreshTimeout time.Duration
	metrics        *metrics.Metrics

	group singleflight.Group

	mu         sync.Mutex
	refreshing bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithExpiryMargin sets how long before expiry a token is refreshed.
func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithRefreshTimeout bounds each refresh round-trip.
func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTimeout = d
	}
}

// WithStore replaces the default in-memory store.
func WithStore(store *Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager. Without WithStore tokens live in memory only.
func NewManager(grantor Grantor, opts ...ManagerOption) *Manager {
	m := &Manager{
		grantor:        grantor,
		store:          NewMemoryStore(),
		now:            time.Now,
		margin:         oauth.DefaultExpiryMargin,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing token store.
func (m *Manager) Store() *Store {
	return m.store
}

// State reports the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	refreshing := m.refreshing
	m.mu.Unlock()

	if refreshing {
		return StateRefreshing
	}
	if m.store.Get() == nil {
		return StateUnauthenticated
	}
	return StateAuthenticated
}

// Login exchanges an authorization grant for a token and stores it.
// A refused grant returns an error matching oauth.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, grant oauth.AuthorizationGrant) (*oauth.Token, error) {
	tok, err := m.grantor.ExchangeCode(ctx, grant)
	if err != nil {
		logging.Warn(managerSubsystem, "Authorization code exchange failed: %v", err)
		return nil, err
	}
	if err := m.store.Set(tok); err != nil {
		return nil, err
	}
	m.metrics.RecordLogin()
	logging.Info(managerSubsystem, "Logged in, token expires at %s", tok.ExpiresAt.Format(time.RFC3339))
	return tok.Clone(), nil
}

// LoginAsync is Login delivered on a channel. The channel receives exactly one
// result and is then closed.
func (m *Manager) LoginAsync(ctx context.Context, grant oauth.AuthorizationGrant) <-chan TokenResult {
	return async(func() (*oauth.Token, error) { return m.Login(ctx, grant) })
}

// Token returns a token valid for at least the expiry margin (at most half of
// the token's lifetime when the server reports one), refreshing it
// first when needed. It blocks the calling goroutine for at most one refresh.
// Cancelling ctx abandons the wait but not the shared refresh.
func (m *Manager) Token(ctx context.Context) (*oauth.Token, error) {
	tok := m.store.Get()
	if tok == nil {
		return nil, &oauth.AuthError{Kind: oauth.ReauthorizationRequired, Description: "not logged in"}
	}
	if !tok.ExpiresWithin(m.now(), m.marginFor(tok)) {
		return tok, nil
	}
	return m.refresh(ctx, func(current *oauth.Token) bool {
		return current.ExpiresWithin(m.now(), m.marginFor(current))
	})
}

// marginFor is the expiry margin applied to tok: the configured margin, capped
// at half the token's lifetime so a short-lived token is not refreshed the
// moment it is issued.
func (m *Manager) marginFor(tok *oauth.Token) time.Duration {
	if half := tok.Lifetime() / 2; half > 0 && half < m.margin {
		return half
	}
	return m.margin
}

// TokenAsync is Token delivered on a channel, for callers that must not block.
// The channel receives exactly one result and is then closed.
func (m *Manager) TokenAsync(ctx context.Context) <-chan TokenResult {
	return async(func() (*oauth.Token, error) { return m.Token(ctx) })
}

// Refresh unconditionally exchanges the refresh token for a new token,
// unless a refresh is already in flight, in which case its result is shared.
func (m *Manager) Refresh(ctx context.Context) (*oauth.Token, error) {
	if m.store.Get() == nil {
		return nil, &oauth.AuthError{Kind: oauth.ReauthorizationRequired, Description: "not logged in"}
	}
	return m.refresh(ctx, func(*oauth.Token) bool { return true })
}

// ForceRefresh refreshes after the server rejected stale. If the stored
// access token no longer equals stale, another caller already refreshed and
// the current token is returned without a round-trip.
func (m *Manager) ForceRefresh(ctx context.Context, stale string) (*oauth.Token, error) {
	tok := m.store.Get()
	if tok == nil {
		return nil, &oauth.AuthError{Kind: oauth.ReauthorizationRequired, Description: "not logged in"}
	}
	if tok.AccessToken != stale {
		return tok, nil
	}
	return m.refresh(ctx, func(current *oauth.Token) bool {
		return current.AccessToken == stale
	})
}

// Logout forgets the current token.
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// refresh attaches to the in-flight refresh or starts one. needed is
// re-evaluated inside the flight against the latest stored token so a caller
// arriving just after a refresh completed does not trigger a second one.
func (m *Manager) refresh(ctx context.Context, needed func(*oauth.Token) bool) (*oauth.Token, error) {
	flightCtx := context.WithoutCancel(ctx)

	ch := m.group.DoChan(refreshKey, func() (interface{}, error) {
		return m.doRefresh(flightCtx, needed)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth.Token).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, needed func(*oauth.Token) bool) (*oauth.Token, error) {
	current := m.store.Get()
	if current == nil {
		return nil, &oauth.AuthError{Kind: oauth.ReauthorizationRequired, Description: "not logged in"}
	}
	if !needed(current) {
		return current, nil
	}
	if current.RefreshToken == "" {
		m.metrics.RecordRefresh("no_refresh_token", false)
		m.dropToken("no refresh token")
		return nil, &oauth.AuthError{Kind: oauth.ReauthorizationRequired, Description: "no refresh token"}
	}

	m.setRefreshing(true)
	defer m.setRefreshing(false)

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	logging.Debug(managerSubsystem, "Refreshing token expiring at %s", current.ExpiresAt.Format(time.RFC3339))

	tok, err := m.grantor.Refresh(ctx, current.RefreshToken)
	if err != nil {
		var authErr *oauth.AuthError
		if errors.As(err, &authErr) {
			m.metrics.RecordRefresh("rejected", false)
			m.dropToken(authErr.Kind.String())
			return nil, err
		}
		m.metrics.RecordRefresh("transient", false)
		logging.Warn(managerSubsystem, "Token refresh failed, keeping current token: %v", err)
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	if err := m.store.Set(tok); err != nil {
		// The new token is still usable in memory.
		logging.Error(managerSubsystem, err, "Failed to persist refreshed token")
	}
	m.metrics.RecordRefresh("", true)
	logging.Info(managerSubsystem, "Token refreshed, expires at %s", tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}

func (m *Manager) dropToken(reason string) {
	logging.Warn(managerSubsystem, "Refresh rejected (%s), re-authorization required", reason)
	if err := m.store.Clear(); err != nil {
		logging.Error(managerSubsystem, err, "Failed to clear rejected token")
	}
}

func (m *Manager) setRefreshing(v bool) {
	m.mu.Lock()
	m.refreshing = v
	m.mu.Unlock()
}

// KeepFresh refreshes the token shortly before it enters the expiry margin,
// so callers rarely wait on a refresh. It returns when ctx is done or the
// refresh token is rejected. When a refresh yields a token that is already
// inside the margin, the next attempt waits at least keepFreshRetryDelay.
func (m *Manager) KeepFresh(ctx context.Context) error {
	var floor time.Duration
	for {
		wait := keepFreshRetryDelay
		if tok := m.store.Get(); tok != nil && !tok.ExpiresAt.IsZero() {
			wait = tok.ExpiresAt.Sub(m.now()) - m.marginFor(tok)
		}
		if wait < floor {
			wait = floor
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		floor = 0
		if m.store.Get() == nil {
			continue
		}
		tok, err := m.Token(ctx)
		if err != nil {
			if oauth.IsReauthorizationRequired(err) || oauth.IsInvalidCredentials(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn(managerSubsystem, "Proactive refresh failed, retrying in %s: %v", keepFreshRetryDelay, err)
			floor = keepFreshRetryDelay
			continue
		}
		if tok.ExpiresWithin(m.now(), m.marginFor(tok)) {
			logging.Warn(managerSubsystem, "Token expiring at %s is already inside the refresh margin, next proactive refresh in %s",
				tok.ExpiresAt.Format(time.RFC3339), keepFreshRetryDelay)
			floor = keepFreshRetryDelay
		}
	}
}

// TokenSource adapts the manager to oauth2.TokenSource so it can back an
// oauth2.Transport. ctx bounds every Token call made through it.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.m.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	return tok.ToOAuth2Token(), nil
}

func async(fn func() (*oauth.Token, error)) <-chan TokenResult {
	ch := make(chan TokenResult, 1)
	go func() {
		defer close(ch)
		tok, err := fn()
		ch <- TokenResult{Token: tok, Err: err}
	}()
	return ch
}
