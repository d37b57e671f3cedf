package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/v1/profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/profiles/arabian-2023", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues(SurfaceAPI, "/api/v1/profiles/{id}", "GET", "200"))
	if got < 1 {
		t.Errorf("Expected route pattern label to be recorded, got %f", got)
	}
	if testutil.CollectAndCount(apiRequestDuration) == 0 {
		t.Error("Expected request duration observations")
	}
	if got := testutil.ToFloat64(apiInFlight.WithLabelValues(SurfaceAPI)); got != 0 {
		t.Errorf("Expected no in-flight requests after completion, got %f", got)
	}
}

func TestMiddlewareKeepsFirstStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ready", http.NoBody))

	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues(SurfaceOps, "/ready", "GET", "503")); got < 1 {
		t.Errorf("Expected first status to win, got %f", got)
	}
}

func TestSurface(t *testing.T) {
	tests := map[string]string{
		"/api/v1/chat": SurfaceAPI,
		"/mcp/sse":     SurfaceMCP,
		"/health":      SurfaceOps,
		"/metrics":     SurfaceOps,
	}
	for path, want := range tests {
		if got := Surface(path); got != want {
			t.Errorf("Expected %s for %s, got %s", want, path, got)
		}
	}
}

func TestObserveEmbedding(t *testing.T) {
	ObserveEmbedding("hash-v1-8", time.Now(), nil)
	ObserveEmbedding("hash-v1-8", time.Now(), errors.New("model offline"))

	if got := testutil.ToFloat64(EmbedderCallsTotal.WithLabelValues("hash-v1-8", "ok")); got < 1 {
		t.Errorf("Expected an ok call, got %f", got)
	}
	if got := testutil.ToFloat64(EmbedderCallsTotal.WithLabelValues("hash-v1-8", "unavailable")); got < 1 {
		t.Errorf("Expected an unavailable call, got %f", got)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()
	RegisterQueryMetrics()
	RegisterQueryMetrics()
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
}
