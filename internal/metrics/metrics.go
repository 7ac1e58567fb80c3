// Package metrics declares the Prometheus collectors of the service.
// They are registered on the default registry and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HintSubmissions counts submissions by outcome ("recorded" or a
	// rejection reason such as "already_recorded").
	HintSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_hint_submissions_total",
			Help: "Hint submissions by outcome",
		},
		[]string{"outcome"},
	)

	Votes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_votes_total",
			Help: "Applied votes by direction",
		},
		[]string{"direction"},
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sneak_ranking_duration_seconds",
			Help:    "Time spent loading evidence and ranking candidates",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"}, // "live", "prior"
	)

	// ProviderRequests counts metadata provider calls by result
	// ("success", "failure", "rejected" when the circuit is open).
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_provider_requests_total",
			Help: "Movie metadata provider requests by result",
		},
		[]string{"endpoint", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sneak_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SweepMovies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_sweep_movies_total",
			Help: "Movies visited by the catalog maintenance sweep by result",
		},
		[]string{"result"}, // "updated", "failed"
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_events_published_total",
			Help: "Hint events published to the broker by result",
		},
		[]string{"type", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_events_consumed_total",
			Help: "Hint events handled by the consumer by result",
		},
		[]string{"type", "result"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sneak_cache_keys_invalidated_total",
			Help: "Cached responses dropped after hint events",
		},
	)

	// RateLimited counts requests rejected by a token bucket, by bucket
	// prefix.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sneak_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"bucket"},
	)
)
