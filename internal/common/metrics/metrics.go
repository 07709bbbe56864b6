// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of outbound provider calls",
		},
		[]string{"provider", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provider_call_duration_seconds",
			Help: "Duration of outbound provider calls in seconds",
		},
		[]string{"provider"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "state"},
	)

	DiscoveryIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_iterations_total",
			Help: "Total number of discovery scanner iterations",
		},
		[]string{"band"},
	)

	CandidatesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_candidates_evaluated_total",
			Help: "Total number of discovered candidates evaluated",
		},
		[]string{"status"},
	)

	SearchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_completed_total",
			Help: "Total number of searches driven to a result event",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_duration_seconds",
			Help: "Duration of one search orchestration pass in seconds",
		},
		[]string{"outcome"},
	)
)
