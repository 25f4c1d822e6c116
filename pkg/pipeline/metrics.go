package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medgate_requests_total",
		Help: "Pipeline requests by outcome (completed, blocked, failed)",
	}, []string{"outcome"})

	blockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medgate_blocked_total",
		Help: "Blocked requests by gate reason",
	}, []string{"reason"})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medgate_cache_hits_total",
		Help: "Responses served from the cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medgate_cache_misses_total",
		Help: "Requests that required model generation",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medgate_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	requestTokenHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medgate_request_tokens",
		Help:    "Token count per generated request",
		Buckets: []float64{1, 10, 50, 100, 500, 1_000, 2_000, 4_000, 8_000, 16_000},
	})
)
