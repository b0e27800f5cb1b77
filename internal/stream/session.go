package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"tradestation/internal/metrics"
	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	subsystem = "StreamSession"

	readBufferSize = 32 * 1024
	framesBuffer   = 256
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateStale
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	case StateStale:
		return "Stale"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Opener opens the HTTP stream. *transport.Transport implements it, so every
// connection attempt gets a token that is valid at connect time.
type Opener interface {
	Stream(ctx context.Context, path string, query url.Values) (io.ReadCloser, error)
}

// Request identifies the streaming endpoint.
type Request struct {
	Path  string
	Query url.Values
}

// Config controls liveness detection and reconnection.
type Config struct {
	// HeartbeatTimeout is the longest gap without a heartbeat or data event
	// before the connection is declared stale.
	HeartbeatTimeout time.Duration
	// MaxRetries is the number of consecutive failed reconnect attempts
	// tolerated before the session ends with RetryExhausted.
	MaxRetries int
	// InitialBackoff, MaxBackoff and Multiplier shape the exponential wait
	// between reconnect attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the randomization factor applied to each wait (0 disables it).
	Jitter float64
	// MaxFragmentSize bounds a single JSON fragment.
	MaxFragmentSize int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout: 30 * time.Second,
		MaxRetries:       5,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
		Multiplier:       2,
		Jitter:           0.2,
		MaxFragmentSize:  DefaultMaxFragmentSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = d.Jitter
	}
	if c.MaxFragmentSize <= 0 {
		c.MaxFragmentSize = d.MaxFragmentSize
	}
	return c
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithConfig sets the session configuration. Zero fields take defaults.
func WithConfig(cfg Config) SessionOption {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithMetrics records stream activity.
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session consumes one streaming endpoint: it parses fragments, watches
// heartbeats, reconnects with bounded backoff and dispatches events in order
// to its Handler. A Session is started once and closed once.
type Session struct {
	id      string
	opener  Opener
	req     Request
	cfg     Config
	metrics *metrics.Metrics

	dispatcher *Dispatcher

	state     atomic.Int32
	malformed atomic.Uint64
	started   atomic.Bool
	closed    atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewSession creates an idle session. Start or Run opens it.
func NewSession(opener Opener, req Request, handler Handler, opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		opener: opener,
		req:    req,
		cfg:    DefaultConfig(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	s.dispatcher = NewDispatcher(handler, s.id, s.metrics)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Malformed returns how many fragments were dropped as malformed.
func (s *Session) Malformed() uint64 {
	return s.malformed.Load()
}

// Done is closed once the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error after Done is closed: nil after Close or
// context cancellation, a RetryExhausted StreamError, or the auth error that
// made reconnecting impossible.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the session stops and returns Err.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

// Start performs the handshake and, on success, streams in the background
// until Close, ctx cancellation or retry exhaustion. A failed handshake
// returns a *ConnectionError and leaves the session Closed.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() || !s.started.CompareAndSwap(false, true) {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	// Close may have run between the checks above and publishing cancel.
	if s.closed.Load() {
		cancel()
		s.setState(StateClosed)
		s.finish(nil)
		return ErrClosed
	}

	s.setState(StateConnecting)
	logging.Debug(subsystem, "[%s] opening %s", s.id, s.req.Path)

	body, err := s.opener.Stream(ctx, s.req.Path, s.req.Query)
	if err != nil {
		cancel()
		s.dispatcher.Close()
		s.setState(StateClosed)
		cerr := &ConnectionError{Path: s.req.Path, Err: err}
		s.finish(cerr)
		return cerr
	}

	s.metrics.StreamOpened()
	s.setState(StateStreaming)
	logging.Info(subsystem, "[%s] streaming %s", s.id, s.req.Path)

	go s.supervise(ctx, body)
	return nil
}

// Run is the blocking form of Start: it returns when the session stops.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Close stops the session. No handler invocation starts after Close returns;
// if an event is just being handed to a handler, Close waits for that one
// call. A pending backoff wait is abandoned. Close does not wait for the
// background goroutines; use Wait for that. It is safe to call more than once,
// including from a handler.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.dispatcher.Close()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !s.started.Load() && s.started.CompareAndSwap(false, true) {
		s.setState(StateClosed)
		s.finish(nil)
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) stopping(ctx context.Context) bool {
	return s.closed.Load() || ctx.Err() != nil
}

// supervise owns the connection loop: consume until the connection ends,
// then reconnect with backoff until a connection delivers again.
func (s *Session) supervise(ctx context.Context, body io.ReadCloser) {
	var terminal error
	defer func() {
		s.dispatcher.Close()
		s.setState(StateClosed)
		s.metrics.StreamClosed()
		logging.Info(subsystem, "[%s] closed", s.id)
		s.finish(terminal)
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.Multiplier = s.cfg.Multiplier
	b.RandomizationFactor = s.cfg.Jitter
	b.Reset()

	failures := 0
	for {
		lost, delivered := s.consume(ctx, body)
		if s.stopping(ctx) {
			return
		}
		if delivered {
			failures = 0
			b.Reset()
		}

		var se *StreamError
		if errors.As(lost, &se) && se.Kind == HeartbeatTimeout {
			s.setState(StateStale)
			s.metrics.RecordHeartbeatTimeout()
		} else {
			s.setState(StateConnecting)
		}
		logging.Warn(subsystem, "[%s] %v, reconnecting", s.id, lost)
		s.dispatcher.Dispatch(ctx, Event{Kind: KindError, Err: lost})

		body = nil
		for body == nil {
			if failures >= s.cfg.MaxRetries {
				terminal = &StreamError{
					Kind:    RetryExhausted,
					Message: fmt.Sprintf("gave up after %d attempts", failures),
					Err:     lost,
				}
				logging.Error(subsystem, terminal, "[%s] stopping", s.id)
				s.dispatcher.Dispatch(ctx, Event{Kind: KindError, Err: terminal})
				return
			}

			wait := b.NextBackOff()
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			failures++
			s.metrics.RecordReconnect()
			s.setState(StateConnecting)
			logging.Debug(subsystem, "[%s] reconnect attempt %d/%d after %s", s.id, failures, s.cfg.MaxRetries, wait)

			opened, err := s.opener.Stream(ctx, s.req.Path, s.req.Query)
			if err != nil {
				if s.stopping(ctx) {
					return
				}
				if oauth.IsReauthorizationRequired(err) || oauth.IsInvalidCredentials(err) {
					terminal = err
					logging.Error(subsystem, err, "[%s] cannot reconnect without a new login", s.id)
					s.dispatcher.Dispatch(ctx, Event{Kind: KindError, Err: err})
					return
				}
				lost = &StreamError{Kind: ConnectionLost, Message: "reconnect failed", Err: err}
				logging.Warn(subsystem, "[%s] reconnect attempt %d failed: %v", s.id, failures, err)
				continue
			}
			body = opened
		}

		s.setState(StateStreaming)
		logging.Info(subsystem, "[%s] reconnected", s.id)
	}
}

// consume reads one connection until it ends. It returns why the connection
// was abandoned, and whether it delivered at least one heartbeat or data event.
func (s *Session) consume(ctx context.Context, body io.ReadCloser) (lost error, delivered bool) {
	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	frames := make(chan classified, framesBuffer)
	var readErr error
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		defer close(frames)
		readErr = s.read(connCtx, body, frames, &lastActivity)
	}()

	// Closing the body unblocks a reader stuck in Read.
	defer func() {
		connCancel()
		body.Close()
		<-readerDone
	}()

	timeout := s.cfg.HeartbeatTimeout
	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, delivered

		case <-watchdog.C:
			idle := time.Since(time.Unix(0, lastActivity.Load()))
			if idle < timeout {
				watchdog.Reset(timeout - idle)
				continue
			}
			return &StreamError{
				Kind:    HeartbeatTimeout,
				Message: fmt.Sprintf("no heartbeat or data for %s", idle.Round(time.Millisecond)),
			}, delivered

		case f, ok := <-frames:
			if !ok {
				err := readErr
				if err == nil || errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return &StreamError{Kind: ConnectionLost, Err: err}, delivered
			}
			if f.event.Kind == KindData || f.event.Kind == KindHeartbeat {
				delivered = true
			}
			s.dispatcher.Dispatch(ctx, f.event)
			if f.goAway {
				return &StreamError{Kind: ConnectionLost, Message: "server requested reconnect"}, delivered
			}
		}
	}
}

// read feeds the body through a fresh parser and forwards classified frames.
func (s *Session) read(ctx context.Context, body io.Reader, frames chan<- classified, lastActivity *atomic.Int64) error {
	parser := NewParser(s.cfg.MaxFragmentSize)
	buf := make([]byte, readBufferSize)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frag := range parser.Feed(buf[:n]) {
				c := s.decode(frag)
				if c.event.Kind == KindData || c.event.Kind == KindHeartbeat {
					lastActivity.Store(time.Now().UnixNano())
				}
				c.event.Timestamp = time.Now()
				select {
				case frames <- c:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err != nil {
			return err
		}
	}
}

// decode classifies a fragment. Malformed fragments are counted, logged and
// turned into Malformed error events.
func (s *Session) decode(frag fragment) classified {
	err := frag.err
	if err == nil {
		c, cerr := classify(frag.raw)
		if cerr == nil {
			return c
		}
		err = cerr
	}

	s.malformed.Add(1)
	s.metrics.RecordMalformed()
	logging.Warn(subsystem, "[%s] dropping malformed fragment: %v", s.id, err)
	return classified{event: Event{
		Kind:    KindError,
		Payload: frag.raw,
		Err:     &StreamError{Kind: Malformed, Err: err},
	}}
}
