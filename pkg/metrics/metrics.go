package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	AuthzDenialCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denial_count",
			Help: "Total number of authorization denials",
		},
		[]string{"role", "action", "resource"},
	)

	ProjectCompletedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "project_completed_count",
			Help: "Total number of projects moved to completed",
		},
	)

	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Total number of outbox events published",
		},
		[]string{"status"}, // status: sent, failed
	)
)

// RecordHTTPRequestDuration records the latency of one handled request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration records the latency of one repository query.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementAuthzDenial counts a 403 decision.
func IncrementAuthzDenial(role, action, resource string) {
	AuthzDenialCount.WithLabelValues(role, action, resource).Inc()
}

// IncrementOutboxPublish counts a dispatcher publish attempt outcome.
func IncrementOutboxPublish(status string) {
	OutboxPublishCount.WithLabelValues(status).Inc()
}
