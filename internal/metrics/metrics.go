// Package metrics declares the Prometheus collectors for ingestion and queries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsIngested counts per-event outcomes: accepted, deduped, updated, rejected.
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "machine_events",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Events processed by outcome.",
		},
		[]string{"outcome"},
	)

	// Rejections counts validation failures by reason code.
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "machine_events",
			Subsystem: "ingest",
			Name:      "rejections_total",
			Help:      "Rejected events by reason.",
		},
		[]string{"reason"},
	)

	// ReconcileConflicts counts lost conditional writes that had to be retried.
	ReconcileConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "machine_events",
			Subsystem: "ingest",
			Name:      "reconcile_conflicts_total",
			Help:      "Conditional ledger writes lost to a concurrent writer.",
		},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "machine_events",
			Subsystem: "ingest",
			Name:      "batch_duration_seconds",
			Help:      "Time to ingest one batch.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// QueryDuration observes stats queries, labelled by query kind.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "machine_events",
			Subsystem: "stats",
			Name:      "query_duration_seconds",
			Help:      "Time to compute a stats report.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// CacheLookups counts report cache lookups by result: hit, miss, error.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "machine_events",
			Subsystem: "stats",
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	_ = prometheus.Register(EventsIngested)
	_ = prometheus.Register(Rejections)
	_ = prometheus.Register(ReconcileConflicts)
	_ = prometheus.Register(BatchDuration)
	_ = prometheus.Register(QueryDuration)
	_ = prometheus.Register(CacheLookups)
}
