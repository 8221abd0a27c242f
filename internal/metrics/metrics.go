package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for oflow
type Metrics struct {
	// Login metrics
	Logins        *prometheus.CounterVec
	LoginDuration *prometheus.HistogramVec

	// Hydration outcome (restored, cleared, empty)
	Hydrations *prometheus.CounterVec

	// Route guard navigations by destination
	Navigations *prometheus.CounterVec

	// Single-flight unauthorized handling
	UnauthorizedSignals         prometheus.Counter
	UnauthorizedReconciliations prometheus.Counter

	// Team directory metrics
	TeamFetches       *prometheus.CounterVec
	TeamFetchDuration prometheus.Histogram
	TeamFetchRetries  prometheus.Counter

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oflow_logins_total",
				Help: "Total number of login attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		LoginDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oflow_login_duration_seconds",
				Help:    "Time from starting a login flow to its outcome",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),

		Hydrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oflow_hydrations_total",
				Help: "Identity hydrations by result",
			},
			[]string{"result"},
		),

		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oflow_navigations_total",
				Help: "Route guard navigations by destination",
			},
			[]string{"destination"},
		),

		UnauthorizedSignals: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "oflow_unauthorized_signals_total",
				Help: "Unauthorized or session-expired signals received",
			},
		),
		UnauthorizedReconciliations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "oflow_unauthorized_reconciliations_total",
				Help: "Logout, sign-out and cache-clear sequences actually executed",
			},
		),

		TeamFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oflow_team_fetches_total",
				Help: "Team directory fetches by outcome",
			},
			[]string{"outcome"},
		),
		TeamFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oflow_team_fetch_duration_seconds",
				Help:    "Team directory fetch latency including retries",
				Buckets: prometheus.DefBuckets,
			},
		),
		TeamFetchRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "oflow_team_fetch_retries_total",
				Help: "Transient team fetch failures that were retried",
			},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oflow_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// The Record helpers are nil-safe so components can run without metrics.

// RecordLogin counts a login outcome ("success", "cancelled" or "failed").
func (m *Metrics) RecordLogin(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(provider, outcome).Inc()
	m.LoginDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordHydration counts a hydration result.
func (m *Metrics) RecordHydration(result string) {
	if m == nil {
		return
	}
	m.Hydrations.WithLabelValues(result).Inc()
}

// RecordNavigation counts a guard navigation.
func (m *Metrics) RecordNavigation(destination string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(destination).Inc()
}

// RecordUnauthorized counts one unauthorized signal and whether it ran the
// reconciliation sequence.
func (m *Metrics) RecordUnauthorized(reconciled bool) {
	if m == nil {
		return
	}
	m.UnauthorizedSignals.Inc()
	if reconciled {
		m.UnauthorizedReconciliations.Inc()
	}
}

// RecordTeamFetch counts a directory fetch ("success" or "failed").
func (m *Metrics) RecordTeamFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TeamFetches.WithLabelValues(outcome).Inc()
	m.TeamFetchDuration.Observe(d.Seconds())
}

// RecordTeamFetchRetry counts a retried attempt.
func (m *Metrics) RecordTeamFetchRetry() {
	if m == nil {
		return
	}
	m.TeamFetchRetries.Inc()
}

// RecordError counts an error by code.
func (m *Metrics) RecordError(code, component string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
