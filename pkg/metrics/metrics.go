package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	AssistCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assist_call_latency_ms",
			Help:    "Assist (LLM) call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"},
	)

	DuplicateCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duplicate_check_duration_seconds",
			Help:    "Duplicate resolver check duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"matched_by"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	EmailObservedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_observed_count",
			Help: "Total number of observed emails by ingest outcome",
		},
		[]string{"outcome"}, // outcome: ingested, duplicate, debounced, dropped
	)

	EmailAssistedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_assisted_count",
			Help: "Total number of emails annotated by the assist worker",
		},
		[]string{"status"}, // status: success, failed
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of database queries slower than the configured threshold",
		},
		[]string{"sql"},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordAssistCallLatency(operation, status string, duration time.Duration) {
	AssistCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

func RecordDuplicateCheck(matchedBy string, duration time.Duration) {
	DuplicateCheckDuration.WithLabelValues(matchedBy).Observe(duration.Seconds())
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementEmailObserved(outcome string) {
	EmailObservedCount.WithLabelValues(outcome).Inc()
}

func IncrementEmailAssisted(status string) {
	EmailAssistedCount.WithLabelValues(status).Inc()
}

func IncrementSlowQuery(sql string) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}
