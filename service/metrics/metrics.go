package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Nonce Metrics
	nonceAllocationsTotal *prometheus.CounterVec
	nonceConflictsTotal   prometheus.Counter
	nonceRollbacksTotal   prometheus.Counter

	// Submission Metrics
	submissionsTotal       *prometheus.CounterVec
	submissionRetriesTotal *prometheus.CounterVec
	confirmationDuration   prometheus.Histogram
	tokenAccountsCreated   prometheus.Counter
	entryEventsPublished   *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		nonceAllocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entry_nonce_allocations_total",
				Help: "Total number of entry nonce allocations by status",
			},
			[]string{"status"},
		),
		nonceConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entry_nonce_conflicts_total",
				Help: "Total number of client-supplied nonce hints that disagreed with the backend counter",
			},
		),
		nonceRollbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entry_nonce_rollbacks_total",
				Help: "Total number of nonce rollbacks after pre-submission failures",
			},
		),

		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entry_submissions_total",
				Help: "Total number of entry submissions by terminal status",
			},
			[]string{"status"},
		),
		submissionRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entry_submission_retries_total",
				Help: "Total number of submission retries by reason",
			},
			[]string{"reason"},
		),
		confirmationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entry_confirmation_duration_seconds",
				Help:    "Time from transaction submission to confirmation",
				Buckets: []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),
		tokenAccountsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "token_accounts_created_total",
				Help: "Total number of associated token accounts created on demand",
			},
		),
		entryEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entry_events_published_total",
				Help: "Total number of entry lifecycle events published to NATS",
			},
			[]string{"status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordNonceAllocation records a nonce allocation attempt.
func (m *Metrics) RecordNonceAllocation(status string) {
	if m == nil {
		return
	}
	m.nonceAllocationsTotal.WithLabelValues(status).Inc()
}

// RecordNonceConflict records a client nonce hint that disagreed with the backend.
func (m *Metrics) RecordNonceConflict() {
	if m == nil {
		return
	}
	m.nonceConflictsTotal.Inc()
}

// RecordNonceRollback records a nonce rollback.
func (m *Metrics) RecordNonceRollback() {
	if m == nil {
		return
	}
	m.nonceRollbacksTotal.Inc()
}

// RecordSubmission records a terminal submission outcome.
func (m *Metrics) RecordSubmission(status string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// RecordSubmissionRetry records a submission retry.
func (m *Metrics) RecordSubmissionRetry(reason string) {
	if m == nil {
		return
	}
	m.submissionRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordConfirmationDuration records the submit-to-confirm latency.
func (m *Metrics) RecordConfirmationDuration(seconds float64) {
	if m == nil {
		return
	}
	m.confirmationDuration.Observe(seconds)
}

// RecordTokenAccountCreated records an on-demand ATA creation.
func (m *Metrics) RecordTokenAccountCreated() {
	if m == nil {
		return
	}
	m.tokenAccountsCreated.Inc()
}

// RecordEntryEventPublished records a published entry lifecycle event.
func (m *Metrics) RecordEntryEventPublished(status string) {
	if m == nil {
		return
	}
	m.entryEventsPublished.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}
