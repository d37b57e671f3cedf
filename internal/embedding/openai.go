package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/metrics"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// OpenAIEmbedder is an embedding provider using any OpenAI-compatible API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// OpenAIConfig holds the OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// Version identifies the model and output size
func (e *OpenAIEmbedder) Version() string {
	if e.dimensions > 0 {
		return fmt.Sprintf("openai/%s/%d", e.model, e.dimensions)
	}
	return "openai/" + string(e.model)
}

// Embed implements Provider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		metrics.ObserveEmbedding(e.Version(), start, err)
		e.logger.Warn("embedding request failed", zap.String("model", string(e.model)), zap.Error(err))
		return nil, parseAPIError(err)
	}
	if len(resp.Data) == 0 {
		err := fmt.Errorf("empty embedding response: %w", models.ErrEmbeddingUnavailable)
		metrics.ObserveEmbedding(e.Version(), start, err)
		return nil, err
	}
	metrics.ObserveEmbedding(e.Version(), start, nil)

	return resp.Data[0].Embedding, nil
}

// parseAPIError wraps every provider error with models.ErrEmbeddingUnavailable.
func parseAPIError(err error) error {
	wrap := models.ErrEmbeddingUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w: %w", wrap, err)
}
