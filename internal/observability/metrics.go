package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for the gateway. A nil *Metrics is a
// valid no-op collector.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	errors          *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
	overduePersists prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_errors_total",
			Help: "Error responses by code.",
		}, []string{"code"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_authz_decisions_total",
			Help: "Route authorization decisions by layer, outcome and reason.",
		}, []string{"layer", "outcome", "reason"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_session_events_total",
			Help: "Session transitions by event type.",
		}, []string{"event"}),
		overduePersists: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_tasks_marked_overdue_total",
			Help: "Tasks whose overdue status was persisted.",
		}),
	}

	reg.MustRegister(m.requests, m.requestLatency, m.errors, m.decisions, m.sessionEvents, m.overduePersists)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestLatency.Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// RecordDecision counts an authorization decision.
func (m *Metrics) RecordDecision(layer, outcome, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(layer, outcome, reason).Inc()
}

// RecordSessionEvent counts a session transition.
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

// RecordOverdue counts tasks persisted as overdue.
func (m *Metrics) RecordOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overduePersists.Add(float64(n))
}
