package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Surfaces the HTTP server exposes
const (
	SurfaceAPI = "api" // /api/v1 chat, profile and query routes
	SurfaceMCP = "mcp" // MCP SSE transport
	SurfaceOps = "ops" // health, readiness, metrics, OpenAPI
)

var (
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "argoquery",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time to serve a request, labelled by chi route pattern",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"surface", "route", "method", "code"},
	)

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "argoquery",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, labelled by chi route pattern and status code",
		},
		[]string{"surface", "route", "method", "code"},
	)

	apiInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "argoquery",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served; MCP SSE streams stay open",
		},
		[]string{"surface"},
	)
)

var httpMetricsRegistered bool

// RegisterHTTPMetrics registers the HTTP collectors. Safe to call more than once.
func RegisterHTTPMetrics() {
	if httpMetricsRegistered {
		return
	}
	prometheus.MustRegister(apiRequestDuration, apiRequestsTotal, apiInFlight)
	httpMetricsRegistered = true
}

// Surface classifies a request path
func Surface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return SurfaceAPI
	case strings.HasPrefix(path, "/mcp"):
		return SurfaceMCP
	}
	return SurfaceOps
}

// Middleware records request duration and count per route pattern. Unmatched
// paths share the "unmatched" route label.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			surface := Surface(r.URL.Path)
			apiInFlight.WithLabelValues(surface).Inc()
			defer apiInFlight.WithLabelValues(surface).Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			code := strconv.Itoa(sw.status)

			apiRequestDuration.WithLabelValues(surface, route, r.Method, code).Observe(time.Since(start).Seconds())
			apiRequestsTotal.WithLabelValues(surface, route, r.Method, code).Inc()
		})
	}
}

// statusWriter keeps the first status written
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush lets MCP SSE streams flush through the wrapper
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
