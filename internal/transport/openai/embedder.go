package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/metrics"
)

// Embedder turns query text into vectors through an OpenAI-compatible
// embeddings endpoint (OpenAI, Nebius, a local gateway).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, errorType(err)).Inc()
		e.logger.Warn("Embedding request failed",
			zap.String("provider", e.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	return "api_error"
}

// parseAPIError extracts a human-readable error from the API response.
// Every result wraps domain.ErrEmbeddingProviderError so callers map it to 502.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request timed out: %w", errors.Join(wrap, context.DeadlineExceeded))
	}
	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail reads the "detail" field some gateways (Nebius) put in error bodies.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
