package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/api"
	"github.com/oscillatelabsllc/argoquery/internal/assistant"
	"github.com/oscillatelabsllc/argoquery/internal/cache"
	"github.com/oscillatelabsllc/argoquery/internal/catalog"
	"github.com/oscillatelabsllc/argoquery/internal/config"
	"github.com/oscillatelabsllc/argoquery/internal/db"
	"github.com/oscillatelabsllc/argoquery/internal/embedding"
	"github.com/oscillatelabsllc/argoquery/internal/index"
	logpkg "github.com/oscillatelabsllc/argoquery/internal/logger"
	"github.com/oscillatelabsllc/argoquery/internal/mcp"
	"github.com/oscillatelabsllc/argoquery/internal/metrics"
	"github.com/oscillatelabsllc/argoquery/internal/predict"
	"github.com/oscillatelabsllc/argoquery/internal/retry"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting argoquery",
		zap.String("version", Version),
		zap.String("env", env),
		zap.String("transport", cfg.Transport),
		zap.String("database", cfg.Database.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()
	metrics.RegisterHTTPMetrics()

	store, err := db.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeCache := buildEmbedder(cfg, logger)
	defer closeCache()

	ix := index.New(provider,
		index.WithRecordStore(store),
		index.WithLogger(logger),
		index.WithConcurrency(cfg.Index.Concurrency),
	)

	cat := catalog.New(store, ix, logger)
	n, err := cat.Warm(ctx, cfg.Index.RebuildOnBoot)
	if err != nil {
		// Chat still answers structured questions without the index
		logger.Error("Failed to warm vector index", zap.Error(err))
	} else {
		logger.Info("Vector index ready", zap.Int("records", n), zap.String("version", ix.Version()))
	}

	asst := assistant.New(store,
		assistant.WithIndex(ix),
		assistant.WithLogger(logger),
		assistant.WithTimeout(cfg.Query.Timeout()),
		assistant.WithTopK(cfg.Query.SemanticTopK),
		assistant.WithRetry(retry.Opts{
			MaxAttempts: cfg.Query.RetryAttempts,
			InitialWait: time.Duration(cfg.Query.RetryInitialMs) * time.Millisecond,
			MaxWait:     retry.Default.MaxWait,
			Jitter:      true,
		}),
	)

	// Pass a nil interface, not a typed nil *predict.Client, when the model server is off
	var predictor interface {
		api.Predictor
		mcp.Predictor
	}
	if cfg.Predict.BaseURL != "" {
		predictor = predict.NewClient(cfg.Predict.BaseURL, time.Duration(cfg.Predict.TimeoutSec)*time.Second)
		logger.Info("Model server configured", zap.String("url", cfg.Predict.BaseURL))
	}

	mcpServer := mcp.NewServer(cat, asst, predictor, logger)

	if cfg.Transport == "stdio" {
		logger.Info("Serving MCP over stdio")
		if err := mcpServer.Serve(); err != nil {
			logger.Fatal("MCP server error", zap.Error(err))
		}
		return
	}

	srv := api.NewServer(cat, asst, predictor, api.Config{
		Port:           cfg.HTTP.Port,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:   time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		ChatRate:       cfg.RateLimit.RequestsPerSec,
		ChatBurst:      cfg.RateLimit.Burst,
	}, logger)
	srv.AddMCPServer(mcpServer.GetMCPServer())

	if err := srv.Serve(ctx, time.Duration(cfg.HTTP.ShutdownSec)*time.Second); err != nil {
		logger.Fatal("HTTP server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// buildEmbedder picks the embedding provider and wraps it in the Redis cache when one is configured.
func buildEmbedder(cfg config.Config, logger *zap.Logger) (embedding.Provider, func()) {
	var provider embedding.Provider
	switch cfg.Embedding.Provider {
	case "ollama":
		provider = embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	case "openai":
		provider = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
	default:
		provider = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}
	logger.Info("Embedder created", zap.String("version", provider.Version()))

	if len(cfg.Cache.Addrs) == 0 {
		return provider, func() {}
	}

	kv, err := cache.NewStore(cache.Config{
		Addrs:    cfg.Cache.Addrs,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		TTL:      time.Duration(cfg.Cache.TTLSec) * time.Second,
	})
	if err != nil {
		logger.Warn("Embedding cache disabled", zap.Error(err))
		return provider, func() {}
	}
	logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	return embedding.NewCachedProvider(provider, kv, logger), kv.Close
}
