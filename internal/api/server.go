package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oscillatelabsllc/argoquery/internal/assistant"
	"github.com/oscillatelabsllc/argoquery/internal/catalog"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/metrics"
	"github.com/oscillatelabsllc/argoquery/internal/predict"
)

// Predictor runs auxiliary model server predictions
type Predictor interface {
	Predict(ctx context.Context, model predict.ModelType, features map[string]float64) (predict.Prediction, error)
}

// Config holds the HTTP settings the server needs
type Config struct {
	Port           int
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ChatRate       float64
	ChatBurst      int
}

// Server implements the HTTP API for argoquery
type Server struct {
	catalog   *catalog.Service
	assistant *assistant.Assistant
	predictor Predictor
	extractor *intent.Extractor
	logger    *zap.Logger
	limiter   *rate.Limiter
	cfg       Config
	router    *chi.Mux
	sseServer *server.SSEServer
}

// NewServer creates a new HTTP API server. predictor may be nil.
func NewServer(cat *catalog.Service, asst *assistant.Assistant, predictor Predictor, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChatRate <= 0 {
		cfg.ChatRate = 5
	}
	if cfg.ChatBurst <= 0 {
		cfg.ChatBurst = 10
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		catalog:   cat,
		assistant: asst,
		predictor: predictor,
		extractor: intent.NewExtractor(),
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ChatRate), cfg.ChatBurst),
		cfg:       cfg,
	}

	s.setupRouter()
	return s
}

// setupRouter configures all HTTP routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Query-Mode"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/openapi.json", s.handleOpenAPISpec)
	r.Handle("/metrics", promhttp.Handler())

	// MCP SSE is mounted by AddMCPServer without a timeout; SSE streams stay open

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.With(s.rateLimit).Post("/chat", s.handleChat)

		r.Post("/profiles", s.handleIngest)
		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)

		r.Post("/query", s.handleQuery)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Post("/predict/{model}", s.handlePredict)
	})

	s.router = r
}

// Handler returns the traced root handler
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "argoquery",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down within grace
func (s *Server) Serve(ctx context.Context, grace time.Duration) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", addr),
			zap.String("openapi", "/openapi.json"),
			zap.String("health", "/health"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// handleHealth returns 200 OK if server is running
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]string{"status": "healthy"})
}

// handleReady checks that the measurement store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.catalog.Ready(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	successResponse(w, map[string]string{"status": "ready"})
}

// errorResponse writes a JSON error response
func errorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// successResponse writes a JSON success response
func successResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// AddMCPServer adds MCP SSE transport to the HTTP server
func (s *Server) AddMCPServer(mcpServer *server.MCPServer) {
	s.sseServer = server.NewSSEServer(
		mcpServer,
		server.WithBasePath("/mcp"),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(15*time.Second),
	)

	s.router.Mount("/mcp", s.sseServer)

	s.logger.Info("MCP SSE transport mounted",
		zap.String("sse", "/mcp/sse"),
		zap.String("message", "/mcp/message"),
	)
}
