package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRunsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "shelter_matching", Name: "match_runs_total", Help: "Total number of match runs"})
	MatchLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "shelter_matching", Name: "match_latency_seconds", Help: "Match latency seconds, storage included"})

	MatchesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shelter_matching",
		Name:      "matches_returned",
		Help:      "Eligible shelters returned per run",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
	CandidatesExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "shelter_matching", Name: "candidates_excluded_total", Help: "Shelters excluded from results, by gate"},
		[]string{"gate"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "shelter_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shelter_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	ShelterSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "shelter_matching", Name: "shelter_sessions", Help: "Connected shelter staff websocket sessions"})
)
