package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradestation/internal/metrics"
	"tradestation/pkg/logging"
)

// Handler receives the events of one session. Methods are called from a
// single goroutine in stream order. A returned error from OnData or
// OnHeartbeat is reported to OnError; a returned error from OnError is logged.
type Handler interface {
	OnData(ctx context.Context, ev Event) error
	OnError(ctx context.Context, ev Event) error
	OnHeartbeat(ctx context.Context, ev Event) error
}

// HandlerFuncs adapts plain functions to Handler. A nil slot ignores its events.
type HandlerFuncs struct {
	Data      func(ctx context.Context, ev Event) error
	Error     func(ctx context.Context, ev Event) error
	Heartbeat func(ctx context.Context, ev Event) error
}

func (h HandlerFuncs) OnData(ctx context.Context, ev Event) error {
	if h.Data == nil {
		return nil
	}
	return h.Data(ctx, ev)
}

func (h HandlerFuncs) OnError(ctx context.Context, ev Event) error {
	if h.Error == nil {
		return nil
	}
	return h.Error(ctx, ev)
}

func (h HandlerFuncs) OnHeartbeat(ctx context.Context, ev Event) error {
	if h.Heartbeat == nil {
		return nil
	}
	return h.Heartbeat(ctx, ev)
}

// NopHandler ignores every event.
var NopHandler Handler = HandlerFuncs{}

// Dispatcher routes events to a Handler, isolating the session from handler
// failures. It is used from one goroutine; only Close may be called concurrently.
type Dispatcher struct {
	handler   Handler
	sessionID string
	metrics   *metrics.Metrics

	// mu is held by Dispatch from the closed check until delivery is over.
	mu        sync.Mutex
	seq       uint64
	closed    atomic.Bool
	inHandler atomic.Bool
	now       func() time.Time
}

// NewDispatcher creates a dispatcher for handler. A nil handler is NopHandler.
func NewDispatcher(handler Handler, sessionID string, m *metrics.Metrics) *Dispatcher {
	if handler == nil {
		handler = NopHandler
	}
	return &Dispatcher{handler: handler, sessionID: sessionID, metrics: m, now: time.Now}
}

// Close stops all future handler invocations. Once it returns no handler call
// starts. An event that already passed the closed check is delivered first,
// so Close may wait for that call. Called from inside a handler it returns
// immediately; the running call is not interrupted either way.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
	if d.inHandler.Load() {
		return
	}
	d.mu.Lock()
	d.mu.Unlock()
}

// Closed reports whether Close was called.
func (d *Dispatcher) Closed() bool {
	return d.closed.Load()
}

// Dispatch assigns the next sequence number to ev and delivers it. It returns
// false when the dispatcher is closed and the event was dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return false
	}

	d.seq++
	ev.Seq = d.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now()
	}
	d.metrics.RecordEvent(ev.Kind.String())

	var err error
	var panicked any
	switch ev.Kind {
	case KindData:
		panicked, err = d.call(ctx, d.handler.OnData, ev)
	case KindHeartbeat:
		panicked, err = d.call(ctx, d.handler.OnHeartbeat, ev)
	case KindError:
		d.deliverError(ctx, ev)
		return true
	default:
		logging.Warn("StreamDispatcher", "[%s] dropping event %d of unknown kind %d", d.sessionID, ev.Seq, ev.Kind)
		return true
	}

	if err != nil || panicked != nil {
		d.deliverError(ctx, Event{
			Kind:      KindError,
			Timestamp: d.now(),
			Seq:       ev.Seq,
			Payload:   ev.Payload,
			Err:       &HandlerError{Kind: ev.Kind, Seq: ev.Seq, Err: err, Panic: panicked},
		})
	}
	return true
}

// deliverError invokes the error slot. Its own failures are only logged.
func (d *Dispatcher) deliverError(ctx context.Context, ev Event) {
	if d.closed.Load() {
		return
	}
	panicked, err := d.call(ctx, d.handler.OnError, ev)
	switch {
	case panicked != nil:
		logging.Error("StreamDispatcher", nil, "[%s] error handler panicked on event %d: %v", d.sessionID, ev.Seq, panicked)
	case err != nil:
		logging.Error("StreamDispatcher", err, "[%s] error handler failed on event %d", d.sessionID, ev.Seq)
	}
}

// call runs one handler slot with inHandler set, so a Close from inside the
// handler does not wait on mu.
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context, Event) error, ev Event) (any, error) {
	d.inHandler.Store(true)
	defer d.inHandler.Store(false)
	return invoke(ctx, fn, ev)
}

// invoke calls fn, converting a panic into a returned value.
func invoke(ctx context.Context, fn func(context.Context, Event) error, ev Event) (panicked any, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
		}
	}()
	return nil, fn(ctx, ev)
}
