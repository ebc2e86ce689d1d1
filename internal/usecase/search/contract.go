package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
	"github.com/kailas-cloud/cinerank/internal/repository/resultcache"
	"github.com/kailas-cloud/cinerank/internal/usecase/embedding"
	"github.com/kailas-cloud/cinerank/internal/usecase/feedback"
	"github.com/kailas-cloud/cinerank/internal/usecase/ranking"
	"github.com/kailas-cloud/cinerank/internal/usecase/rewrite"
)

// Retriever fetches raw ANN candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filters filter.Expression, k int) ([]result.Result, error)
}

// Scorer blends ANN similarity with lexical and metadata scores.
type Scorer interface {
	Score(query string, hits []result.Result) []candidate.Candidate
}

// Ranker produces the final order.
type Ranker interface {
	Strategy() ranking.Strategy
	RankWith(
		strategy ranking.Strategy, q string, cs []candidate.Candidate,
		signals map[string]float64, user *request.UserContext, limit int,
	) ([]candidate.Candidate, error)
	Explain(q string, c candidate.Candidate, signal float64, user *request.UserContext) ranking.Explanation
}

// Rewriter optimizes query text and learns per-pattern performance.
type Rewriter interface {
	Optimize(query string) rewrite.Result
	UpdateProfile(query string, latency time.Duration, successRate float64, resultCount int)
	Stats() rewrite.Stats
}

// Learner accumulates interaction feedback.
type Learner interface {
	RecordEvent(ev interaction.Event) float64
	Signals(ids []string) map[string]float64
	Stats() feedback.Stats
}

// ResultCache stores ranked result pools.
type ResultCache interface {
	Get(ctx context.Context, key string) (resultcache.Entry, bool)
	Put(ctx context.Context, key string, e *resultcache.Entry, ttl time.Duration) bool
}

// CacheAdmin exposes tier-wide statistics and clearing.
type CacheAdmin interface {
	Stats() cache.Stats
	Clear(ctx context.Context) error
}

// BudgetReporter reports the embedding token budget.
type BudgetReporter interface {
	Snapshot() embedding.BudgetSnapshot
}

// breakerState is implemented by retrievers guarded by a circuit breaker.
type breakerState interface {
	State() string
}
