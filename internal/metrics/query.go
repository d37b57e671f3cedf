package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argoquery",
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests by resolved mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: "ok" / "empty" / "fallback"
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "argoquery",
			Name:      "chat_request_duration_seconds",
			Help:      "End-to-end chat request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	StoreRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "argoquery",
			Name:      "store_retries_total",
			Help:      "Measurement store calls retried after a transient failure",
		},
	)

	IndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "argoquery",
			Name:      "vector_index_records",
			Help:      "Number of embedding records in the vector similarity index",
		},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers the query pipeline metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(ChatRequestsTotal)
	prometheus.MustRegister(ChatRequestDuration)
	prometheus.MustRegister(StoreRetriesTotal)
	prometheus.MustRegister(IndexSize)
	queryMetricsRegistered = true
}
