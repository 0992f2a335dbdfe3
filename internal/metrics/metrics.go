// Package metrics exposes the Prometheus counters and histograms that
// instrument the write and query paths. Grounded on the prometheus
// client_golang usage present in the retrieved corpus (cuemby-warren).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsestream_ingest_total",
		Help: "Total ingestion attempts by outcome.",
	}, []string{"outcome"}) // success | duplicate | validation_error | rate_limited | store_error

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsestream_rate_limit_rejections_total",
		Help: "Total requests rejected by the per-tenant rate limiter.",
	}, []string{"tenant_id"})

	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsestream_dedup_hits_total",
		Help: "Total ingestion requests resolved as idempotent duplicates.",
	})

	EnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsestream_enqueue_failures_total",
		Help: "Total post-commit worker hand-off failures (tolerated; recovered by the sweeper).",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulsestream_ingest_duration_seconds",
		Help:    "Ingestion coordinator latency.",
		Buckets: prometheus.DefBuckets,
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulsestream_search_duration_seconds",
		Help:    "Query service search latency.",
		Buckets: prometheus.DefBuckets,
	})
)
