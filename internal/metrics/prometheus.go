package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors for the token manager,
// transport and stream sessions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Token metrics
	TokenRefreshes      prometheus.Counter
	TokenRefreshFailure *prometheus.CounterVec
	TokenLogins         prometheus.Counter

	// Transport metrics
	Requests    *prometheus.CounterVec
	AuthRetries prometheus.Counter

	// Stream metrics
	StreamEvents       *prometheus.CounterVec
	MalformedFragments prometheus.Counter
	HeartbeatTimeouts  prometheus.Counter
	Reconnects         prometheus.Counter
	ActiveStreams      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates and registers all collectors with reg.
// Passing prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokenRefreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_token_refreshes_total",
			Help: "Total number of token endpoint refresh calls that succeeded",
		}),
		TokenRefreshFailure: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradestation_token_refresh_failures_total",
			Help: "Total number of failed refresh calls by reason",
		}, []string{"reason"}),
		TokenLogins: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_token_logins_total",
			Help: "Total number of successful authorization code exchanges",
		}),

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradestation_http_requests_total",
			Help: "Total number of API requests by status class",
		}, []string{"class"}),
		AuthRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_http_auth_retries_total",
			Help: "Total number of requests replayed after a 401",
		}),

		StreamEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradestation_stream_events_total",
			Help: "Total number of stream events dispatched by kind",
		}, []string{"kind"}),
		MalformedFragments: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_stream_malformed_fragments_total",
			Help: "Total number of stream fragments dropped as malformed",
		}),
		HeartbeatTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_stream_heartbeat_timeouts_total",
			Help: "Total number of connections declared stale",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "tradestation_stream_reconnects_total",
			Help: "Total number of stream reconnect attempts",
		}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradestation_stream_active",
			Help: "Current number of open stream sessions",
		}),

		gatherer: reg,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordRefresh records the outcome of one token endpoint refresh call.
func (m *Metrics) RecordRefresh(reason string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.TokenRefreshes.Inc()
		return
	}
	m.TokenRefreshFailure.WithLabelValues(reason).Inc()
}

// RecordLogin records a successful code exchange.
func (m *Metrics) RecordLogin() {
	if m == nil {
		return
	}
	m.TokenLogins.Inc()
}

// RecordRequest records a completed API request by status class (2xx, 4xx, 5xx, error).
func (m *Metrics) RecordRequest(status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(statusClass(status)).Inc()
}

// RecordAuthRetry records a request replayed after a 401.
func (m *Metrics) RecordAuthRetry() {
	if m == nil {
		return
	}
	m.AuthRetries.Inc()
}

// RecordEvent records a dispatched stream event.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(kind).Inc()
}

// RecordMalformed records a dropped stream fragment.
func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.MalformedFragments.Inc()
}

// RecordHeartbeatTimeout records a stale connection.
func (m *Metrics) RecordHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.HeartbeatTimeouts.Inc()
}

// RecordReconnect records one reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// StreamOpened and StreamClosed track the number of live sessions.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
