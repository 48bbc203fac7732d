// Package metrics exposes the Prometheus collectors shared by the ingestion,
// detection and analysis subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "observa"

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total number of canonical events accepted for storage",
		},
		[]string{"source"},
	)

	EventsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Total number of ingested records rejected at validation",
		},
	)

	SignalsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_detected_total",
			Help:      "Total number of signals produced by detection",
		},
		[]string{"severity"},
	)

	AnalysisJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_jobs_total",
			Help:      "Analysis jobs by trigger and terminal status",
		},
		[]string{"trigger", "status"},
	)

	JudgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_request_duration_seconds",
			Help:      "Latency of judge-service calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"layer"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_queue_depth",
			Help:      "Jobs in the analysis queue by state",
		},
		[]string{"state"},
	)
)
