package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LakeFSRequestsTotal tracks outbound calls to lakeFS.
	LakeFSRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakefs_api_requests_total",
			Help: "Total number of lakeFS API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	LakeFSRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakefs_api_request_duration_seconds",
			Help:    "Duration of lakeFS API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// LoginValidations counts LoginInformation documents checked, by result
	// ("ok" or a schema reason such as "missing").
	LoginValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakefs_login_validations_total",
			Help: "Number of LoginInformation documents validated, by result.",
		},
		[]string{"result"},
	)

	// SessionsActive is the number of sessions held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakefs_sessions_active",
			Help: "Number of lakeFS sessions currently cached.",
		},
	)

	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// LastRefreshTimestamp gauges the last completed session refresh (unix seconds).
	LastRefreshTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_last_refresh_timestamp",
			Help: "Timestamp (unix seconds) of the last completed session refresh.",
		},
		[]string{"component"},
	)
)

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

func IncLakeFSRequest(endpoint, method, status string) {
	LakeFSRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncLoginValidation(result string) {
	LoginValidations.WithLabelValues(result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastRefresh(component string, t time.Time) {
	LastRefreshTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
