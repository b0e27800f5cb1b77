package stream

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// EventKind is the type of a dispatched stream event.
type EventKind int

const (
	KindData EventKind = iota + 1
	KindError
	KindHeartbeat
)

func (k EventKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindError:
		return "error"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Event is one item delivered to a Handler.
type Event struct {
	Kind      EventKind
	Seq       uint64
	Timestamp time.Time

	// Payload is the raw JSON of the fragment. For data fragments wrapped as
	// {"data": ...} it is the inner value.
	Payload []byte

	// Err is set on KindError events: a *StreamError or a *HandlerError.
	Err error
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %d has no payload", e.Seq)
	}
	return json.Unmarshal(e.Payload, v)
}

// ErrorKind classifies a StreamError.
type ErrorKind int

const (
	// Malformed means a fragment was not valid JSON or exceeded the size limit.
	Malformed ErrorKind = iota + 1
	// HeartbeatTimeout means no heartbeat or data arrived within the timeout.
	HeartbeatTimeout
	// ConnectionLost means the response body ended or failed unexpectedly.
	ConnectionLost
	// RetryExhausted means reconnection gave up. It is terminal.
	RetryExhausted
	// Remote means the server sent an error fragment.
	Remote
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed fragment"
	case HeartbeatTimeout:
		return "heartbeat timeout"
	case ConnectionLost:
		return "connection lost"
	case RetryExhausted:
		return "retries exhausted"
	case Remote:
		return "server error"
	default:
		return "stream error"
	}
}

// StreamError describes a problem on a stream session.
type StreamError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is matches on kind so errors.Is(err, &StreamError{Kind: RetryExhausted}) works.
func (e *StreamError) Is(target error) bool {
	var t *StreamError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMalformed        = &StreamError{Kind: Malformed}
	ErrHeartbeatTimeout = &StreamError{Kind: HeartbeatTimeout}
	ErrConnectionLost   = &StreamError{Kind: ConnectionLost}
	ErrRetryExhausted   = &StreamError{Kind: RetryExhausted}
	ErrRemote           = &StreamError{Kind: Remote}

	// ErrClosed is returned by Start on a session that was already closed or started.
	ErrClosed = errors.New("stream session closed")
)

// ConnectionError is returned when the initial handshake fails.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open stream %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a failure of a data or heartbeat handler.
type HandlerError struct {
	Kind  EventKind
	Seq   uint64
	Err   error
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s handler panicked on event %d: %v", e.Kind, e.Seq, e.Panic)
	}
	return fmt.Sprintf("%s handler failed on event %d: %v", e.Kind, e.Seq, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
