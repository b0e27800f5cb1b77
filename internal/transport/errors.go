package transport

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// Network means the request never produced an HTTP response.
	Network ErrorKind = iota + 1
	// ServerError means the server answered with a non-2xx status other than a retried 401.
	ServerError
	// AuthExpiredRetried means the server answered 401 again after a token refresh.
	AuthExpiredRetried
)

func (k ErrorKind) String() string {
	switch k {
	case Network:
		return "network error"
	case ServerError:
		return "server error"
	case AuthExpiredRetried:
		return "unauthorized after token refresh"
	default:
		return "transport error"
	}
}

// NetworkCause categorizes a Network error.
type NetworkCause int

const (
	CauseUnknown NetworkCause = iota
	CauseTLS
	CauseConnection
	CauseTimeout
	CauseDNS
)

// String returns a human-readable name for the cause.
func (c NetworkCause) String() string {
	switch c {
	case CauseTLS:
		return "TLS certificate error"
	case CauseConnection:
		return "connection error"
	case CauseTimeout:
		return "timeout"
	case CauseDNS:
		return "DNS resolution error"
	default:
		return "unknown"
	}
}

// TransportError is returned by Transport for every failure it originates.
// Errors from the token provider are passed through unchanged.
type TransportError struct {
	Kind   ErrorKind
	Method string
	URL    string

	// Status and Body are set for ServerError and AuthExpiredRetried.
	Status int
	Body   string

	// Cause is set for Network.
	Cause NetworkCause
	Err   error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case ServerError, AuthExpiredRetried:
		msg := fmt.Sprintf("%s %s: %s (status %d)", e.Method, e.URL, e.Kind, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	default:
		return fmt.Sprintf("%s %s: %s (%s): %v", e.Method, e.URL, e.Kind, e.Cause, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TransportError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == k
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// classifyNetwork inspects a client error to tell TLS, DNS, timeout and
// connection failures apart.
func classifyNetwork(err error) NetworkCause {
	if err == nil {
		return CauseUnknown
	}
	if isTLSError(err) {
		return CauseTLS
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseDNS
	}
	if isTimeoutError(err) {
		return CauseTimeout
	}
	if isConnectionError(err.Error()) {
		return CauseConnection
	}
	return CauseUnknown
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	var systemRootsErr *x509.SystemRootsError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &systemRootsErr) {
		return true
	}

	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isConnectionError(errStr string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
		"EOF",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
