package kv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaykv_stores_total",
		Help: "Total number of records published by Store",
	})

	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaykv_reads_total",
		Help: "Total number of history reads by outcome",
	}, []string{"outcome"})

	compactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaykv_compactions_total",
		Help: "Total number of snapshots published by compaction",
	})

	compactedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaykv_compacted_records_total",
		Help: "Total number of individual records absorbed into snapshots",
	})

	deletionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaykv_deletion_failures_total",
		Help: "Deletion requests that failed after compaction and were ignored",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaykv_operation_duration_seconds",
		Help:    "Duration of store operations",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"operation"})
)
