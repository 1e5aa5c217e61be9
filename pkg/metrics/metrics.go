package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestedObjectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cimdb_ingested_objects_total",
			Help: "Total number of typed instances committed to the backend",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cimdb_ingest_duration_seconds",
			Help:    "Duration of dataset ingests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	LintChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cimdb_lint_checks_total",
			Help: "Total number of integrity checks executed",
		},
		[]string{"status"},
	)

	LintViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cimdb_lint_violations_total",
			Help: "Total number of integrity violations found",
		},
		[]string{"kind"},
	)
)
