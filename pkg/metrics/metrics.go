package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// per-email triage outcome
	EmailProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_email_processed_count",
			Help: "Total number of emails processed by the triage pipeline",
		},
		[]string{"status"}, // status: success, skipped, store_failed
	)

	EmailCategoryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_email_category_count",
			Help: "Emails triaged per category and priority",
		},
		[]string{"category", "priority"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_cycle_duration_seconds",
			Help:    "Duration of a scheduled triage job run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"job", "status"},
	)

	CycleSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_cycle_skipped_count",
			Help: "Scheduled wakes skipped because the previous run was still in progress",
		},
		[]string{"job"},
	)

	// advisor latency (ms)
	AdvisorCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_call_latency_ms",
			Help:    "Generative advisor call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"kind", "status"},
	)

	AdvisorFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_fallback_count",
			Help: "Advisor calls answered by the local fallback",
		},
		[]string{"kind", "reason"},
	)

	NotificationSendCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_send_count",
			Help: "Notification deliveries per channel",
		},
		[]string{"channel", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Queries slower than the slow query threshold",
		},
		[]string{"operation"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func IncrementEmailProcessed(status string) {
	EmailProcessedCount.WithLabelValues(status).Inc()
}

func IncrementEmailCategory(category, priority string) {
	EmailCategoryCount.WithLabelValues(category, priority).Inc()
}

func RecordCycleDuration(job, status string, duration time.Duration) {
	CycleDuration.WithLabelValues(job, status).Observe(duration.Seconds())
}

func IncrementCycleSkipped(job string) {
	CycleSkipped.WithLabelValues(job).Inc()
}

func RecordAdvisorCallLatency(kind, status string, duration time.Duration) {
	AdvisorCallLatency.WithLabelValues(kind, status).Observe(float64(duration.Milliseconds()))
}

func IncrementAdvisorFallback(kind, reason string) {
	AdvisorFallbackCount.WithLabelValues(kind, reason).Inc()
}

func IncrementNotificationSend(channel, status string) {
	NotificationSendCount.WithLabelValues(channel, status).Inc()
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery(operation string) {
	DBSlowQueryCount.WithLabelValues(operation).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
