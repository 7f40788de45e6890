// Package metrics provides Prometheus metrics for feed refreshes and next-event selection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch result labels.
const (
	FetchNetwork       = "network"
	FetchNotModified   = "not_modified"
	FetchCacheFallback = "cache_fallback"
	FetchError         = "error"
)

// Record outcome labels.
const (
	RecordResolved   = "resolved"
	RecordUnresolved = "unresolved"
	RecordConflict   = "conflict"
)

var (
	// FeedFetchTotal counts feed retrievals by result.
	FeedFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nextrace_feed_fetch_total",
		Help: "Total number of feed fetches, by result.",
	}, []string{"result"})

	// RecordsTotal counts processed feed records by timing outcome.
	// "conflict" is counted in addition to "resolved" for records whose
	// timing fields disagree with each other.
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nextrace_records_total",
		Help: "Total number of feed records processed, by timing outcome.",
	}, []string{"outcome"})

	// NextEvents is the number of tracked series with an upcoming event at
	// the last refresh.
	NextEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nextrace_next_events",
		Help: "Number of tracked series with an upcoming event at the last refresh.",
	})

	// RefreshDuration observes end-to-end refresh latency.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nextrace_refresh_duration_seconds",
		Help:    "Duration of feed refreshes (fetch, decode, resolve).",
		Buckets: prometheus.DefBuckets,
	})
)
