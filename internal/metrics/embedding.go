package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedder metrics, labelled by the model version that also guards the vector index.
var (
	EmbedderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argoquery",
			Subsystem: "embedder",
			Name:      "calls_total",
			Help:      "Profile summary and query embeddings requested from the model, by outcome",
		},
		[]string{"model_version", "outcome"}, // outcome: "ok" / "unavailable"
	)

	EmbedderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "argoquery",
			Subsystem: "embedder",
			Name:      "latency_seconds",
			Help:      "Time to embed one profile summary or chat query",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model_version"},
	)

	EmbeddingCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argoquery",
			Subsystem: "embedder",
			Name:      "cache_lookups_total",
			Help:      "Redis embedding cache lookups, by model version and hit or miss",
		},
		[]string{"model_version", "result"},
	)
)

// ObserveEmbedding records one embedding call made since start
func ObserveEmbedding(version string, start time.Time, err error) {
	if err != nil {
		EmbedderCallsTotal.WithLabelValues(version, "unavailable").Inc()
		return
	}
	EmbedderCallsTotal.WithLabelValues(version, "ok").Inc()
	EmbedderLatency.WithLabelValues(version).Observe(time.Since(start).Seconds())
}

var embMetricsRegistered bool

// RegisterEmbeddingMetrics registers the embedder collectors. Safe to call more than once.
func RegisterEmbeddingMetrics() {
	if embMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbedderCallsTotal, EmbedderLatency, EmbeddingCacheLookups)
	embMetricsRegistered = true
}
