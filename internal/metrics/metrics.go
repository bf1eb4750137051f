package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas de ingesta, recomendación, cache y persistencia.
var (
	IngestedReviews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviewrec_ingested_reviews_total",
		Help: "Reviews written to the compact dataset",
	})

	IngestSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrec_ingest_skipped_total",
		Help: "Score lines skipped during ingestion",
	}, []string{"reason"}) // malformed, bad_score

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reviewrec_ingest_duration_seconds",
		Help:    "Duration of a full ingestion pass",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	StartupMode = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrec_startup_total",
		Help: "Engine startups by mode",
	}, []string{"mode"}) // warm, cold

	RecommendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewrec_recommend_duration_seconds",
		Help:    "Duration of recommendation requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"}) // ok, not_found, error

	NeighborhoodSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reviewrec_neighborhood_size",
		Help:    "Number of neighbors above threshold per request",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrec_cache_requests_total",
		Help: "Recommendation cache lookups",
	}, []string{"result"}) // hit, miss, error

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewrec_persist_failures_total",
		Help: "Failed registry or history writes",
	}, []string{"target"}) // registry, mongo
)
