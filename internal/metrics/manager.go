// Package metrics defines the Prometheus collectors of forceapp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of CounterCommits.
const (
	OutcomeSaved   = "saved"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type Manager struct {
	// counters
	CounterSessionsResolved *prometheus.CounterVec
	CounterCommits          *prometheus.CounterVec
	CounterWeightAdvances   prometheus.Counter
	CounterWeightSyncs      prometheus.Counter
	CounterRequests         *prometheus.CounterVec
	CounterRequestPanics    prometheus.Counter

	// gauges
	GaugeInflightRequests prometheus.Gauge

	// histograms
	HistogramCommitDuration  prometheus.Histogram
	HistogramRequestDuration *prometheus.HistogramVec
}

// NewTestManagerAndRegistry returns a Manager registered on a fresh registry for assertions in tests.
func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("forceapp", "test", reg), reg
}

// NewManager creates the collectors and registers them on reg.
func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterSessionsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_resolved_total",
			Help:      "Resolved sessions by state",
		}, []string{"state"}),
		CounterCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_commits_total",
			Help:      "Session commits by outcome",
		}, []string{"outcome"}),
		CounterWeightAdvances: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "weight_advances_total",
			Help:      "Exercises prescribed a heavier weight than their stored working weight",
		}),
		CounterWeightSyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "weight_syncs_total",
			Help:      "Stored working weights reconciled with the weight lifted in a session",
		}),
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterRequestPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_panics_total",
			Help:      "The total number of recovered request panics",
		}),
		GaugeInflightRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inflight_requests",
			Help:      "Current number of requests served",
		}),
		HistogramCommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_commit_duration_seconds",
			Help:      "Duration of a session commit including aggregate recomputation",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		HistogramRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Histogram of response time for requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "status_code"}),
	}
}
