// Package metrics holds the Prometheus instruments for the decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SearchesTotal      prometheus.Counter
	MatchesFoundTotal  prometheus.Counter
	ReviewFlaggedTotal prometheus.Counter
	ExtractionFailures prometheus.Counter
	CasesClosedTotal   prometheus.Counter
	AuditEventsTotal   prometheus.Counter
	SearchDuration     prometheus.Histogram
}

// New creates all metrics and registers them on the given registerer. Tests
// pass a fresh registry to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_searches_total",
			Help: "Total number of facial searches executed",
		}),
		MatchesFoundTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_matches_found_total",
			Help: "Total number of searches that cleared the plausibility floor",
		}),
		ReviewFlaggedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_review_flagged_total",
			Help: "Total number of matches flagged for mandatory human review",
		}),
		ExtractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_extraction_failures_total",
			Help: "Total number of uploads where no face could be extracted",
		}),
		CasesClosedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_cases_closed_total",
			Help: "Total number of cases driven to the terminal state",
		}),
		AuditEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "surasmart_audit_events_total",
			Help: "Total number of audit trail events emitted",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "surasmart_search_duration_seconds",
			Help:    "End-to-end facial search latency (extraction plus scan)",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}
}
