// Package embedding wraps the query embedder with token budget enforcement
// and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder wraps an Embedder with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai;
// this layer owns the budget and its gauge.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	budget    BudgetChecker
	remaining *prometheus.GaugeVec
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. budget and remaining may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, remaining *prometheus.GaugeVec, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		model:     model,
		budget:    budget,
		remaining: remaining,
		logger:    logger,
	}
}

// Embed checks the budget, delegates to the inner embedder and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Budget exceeded",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if p.budget != nil && result.TotalTokens > 0 {
		p.budget.Record(int64(result.TotalTokens))
		if p.remaining != nil {
			p.remaining.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
			p.remaining.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
		}
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedder health: %w", err)
		}
	}
	return nil
}
