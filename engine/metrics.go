package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_event_processed_count",
	Help: "Number of events entering the pipeline, by type.",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_event_error_count",
	Help: "Number of events whose processing panicked, by type.",
}, []string{"type"})

var eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "sentinel_event_duration_seconds",
	Help:    "Time to fully process an event, by type.",
	Buckets: prometheus.ExponentialBucketsRange(0.0001, 30, 14),
}, []string{"type"})

var enforceActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_enforce_action_count",
	Help: "Number of successfully applied enforcement actions, by action.",
}, []string{"action"})

var phashScanCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_phash_scan_count",
	Help: "Number of avatar similarity scans, by outcome.",
}, []string{"outcome"})
