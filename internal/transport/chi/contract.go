package chi

import (
	"context"

	"github.com/kailas-cloud/cinerank/internal/domain/session"
	"github.com/kailas-cloud/cinerank/internal/usecase/evaluation"
	healthuc "github.com/kailas-cloud/cinerank/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cinerank/internal/usecase/search"
)

// Searcher is the orchestrator surface the API exposes.
type Searcher interface {
	Search(ctx context.Context, q searchuc.Query) searchuc.Response
	Session(id string) (session.Session, error)
	RecordInteraction(ctx context.Context, sessionID, documentID, kind string) searchuc.InteractionResult
	Stats() searchuc.Stats
	Recommendations() searchuc.Tuning
	WarmCache(ctx context.Context, queries []string) searchuc.WarmResult
	ClearCaches(ctx context.Context) error
}

// Evaluator scores result lists against relevance judgments.
type Evaluator interface {
	Evaluate(query string, docs []evaluation.Doc, explicit map[string]float64) (evaluation.Result, error)
	EvaluateSet(cases []evaluation.Case) (evaluation.SetResult, error)
	AddJudgments(js []evaluation.Judgment) error
	ClearJudgments()
	JudgedQueries() int
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
