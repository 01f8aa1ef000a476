package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OccurrencesTotal counts occurrences handled at the boundary
	OccurrencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_occurrences_total",
			Help: "Total number of error occurrences handled",
		},
		[]string{"error_id", "severity"},
	)

	// UnknownErrorIDs counts raises of ids missing from the catalog
	UnknownErrorIDs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_unknown_error_ids_total",
			Help: "Total number of uncatalogued error ids degraded to GENERAL-000",
		},
	)

	// SinkFailures counts occurrences the sink failed to persist
	SinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_sink_failures_total",
			Help: "Total number of occurrence sink append failures",
		},
	)

	// AlertsSent tracks delivered alerts per channel and kind
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_alerts_sent_total",
			Help: "Total number of alerts delivered",
		},
		[]string{"channel", "kind"},
	)

	// AlertsSuppressed counts occurrences swallowed by the cooldown
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_alerts_suppressed_total",
			Help: "Total number of occurrences suppressed during cooldown",
		},
		[]string{"severity"},
	)

	// AlertDeliveryFailures counts deliveries that exhausted their retries
	AlertDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_alert_delivery_failures_total",
			Help: "Total number of alert deliveries that failed after retries",
		},
		[]string{"channel"},
	)

	// StateStoreErrors counts failed state store operations
	StateStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_state_store_errors_total",
			Help: "Total number of fingerprint state store errors",
		},
		[]string{"op"},
	)

	// DigestBucketsFlushed counts digest messages emitted
	DigestBucketsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_digest_buckets_flushed_total",
			Help: "Total number of digest buckets flushed",
		},
	)

	// DigestOccurrencesFlushed counts occurrences summarised by digests
	DigestOccurrencesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_digest_occurrences_flushed_total",
			Help: "Total number of occurrences summarised in digests",
		},
	)

	// RetryAttempts counts retries (not first attempts) per strategy
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"strategy"},
	)

	// HandleDuration tracks boundary handling latency
	HandleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faultline_boundary_handle_duration_seconds",
			Help:    "Time spent turning an error into a wire response",
			Buckets: prometheus.DefBuckets,
		},
	)

	// OccurrencesPruned counts occurrences removed by retention
	OccurrencesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_occurrences_pruned_total",
			Help: "Total number of expired occurrences deleted",
		},
	)

	// SinkPoolUsage tracks sink connection pool usage in percent
	SinkPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultline_sink_pool_usage_percent",
			Help: "Occurrence sink connection pool usage percentage",
		},
	)
)
