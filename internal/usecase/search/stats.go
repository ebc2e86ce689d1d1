package search

import (
	"time"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/domain/session"
	"github.com/kailas-cloud/cinerank/internal/usecase/embedding"
	"github.com/kailas-cloud/cinerank/internal/usecase/feedback"
	"github.com/kailas-cloud/cinerank/internal/usecase/rewrite"
)

const recentSessions = 10

// Overview summarizes the sessions currently held.
type Overview struct {
	RewriteEnabled   bool          `json:"rewrite_enabled"`
	TotalSessions    int           `json:"total_sessions"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	OptimizationRate float64       `json:"optimization_rate"`
	FailureRate      float64       `json:"failure_rate"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
}

// SessionSummary is a compact view of a recent session.
type SessionSummary struct {
	ID                  string        `json:"session_id"`
	OriginalQuery       string        `json:"original_query"`
	CacheHit            bool          `json:"cache_hit"`
	OptimizationApplied bool          `json:"optimization_applied"`
	ResponseTime        time.Duration `json:"response_time"`
	ResultCount         int           `json:"result_count"`
	Interactions        int           `json:"interactions"`
}

// RankingStats describes the ranking side of the engine.
type RankingStats struct {
	Strategy string         `json:"strategy"`
	Feedback feedback.Stats `json:"feedback"`
}

// Stats is the engine-wide statistics snapshot.
type Stats struct {
	Overview          Overview                  `json:"overview"`
	Cache             cache.Stats               `json:"cache"`
	QueryOptimization rewrite.Stats             `json:"query_optimization"`
	Ranking           RankingStats              `json:"ranking"`
	Embedding         *embedding.BudgetSnapshot `json:"embedding_budget,omitempty"`
	ANNBreaker        string                    `json:"ann_breaker,omitempty"`
	RecentSessions    []SessionSummary          `json:"recent_sessions"`
}

// Stats collects statistics from every component.
func (s *Service) Stats() Stats {
	sessions := s.sessions.snapshot()

	st := Stats{
		Overview:          s.overview(sessions),
		Cache:             s.deps.Cache.Stats(),
		QueryOptimization: s.deps.Rewriter.Stats(),
		Ranking: RankingStats{
			Strategy: string(s.deps.Ranker.Strategy()),
			Feedback: s.deps.Learner.Stats(),
		},
		RecentSessions: make([]SessionSummary, 0, recentSessions),
	}
	if s.deps.Budget != nil {
		snap := s.deps.Budget.Snapshot()
		st.Embedding = &snap
	}
	if b, ok := s.deps.Retriever.(breakerState); ok {
		st.ANNBreaker = b.State()
	}

	from := max(len(sessions)-recentSessions, 0)
	for i := len(sessions) - 1; i >= from; i-- {
		sess := sessions[i]
		st.RecentSessions = append(st.RecentSessions, SessionSummary{
			ID:                  sess.ID,
			OriginalQuery:       sess.OriginalQuery,
			CacheHit:            sess.CacheHit,
			OptimizationApplied: sess.OptimizationApplied,
			ResponseTime:        sess.ResponseTime,
			ResultCount:         sess.ResultCount,
			Interactions:        len(sess.Interactions),
		})
	}
	return st
}

func (s *Service) overview(sessions []session.Session) Overview {
	o := Overview{RewriteEnabled: s.cfg.RewriteEnabled, TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return o
	}

	var hits, optimized, failed int
	var total time.Duration
	for _, sess := range sessions {
		if sess.CacheHit {
			hits++
		}
		if sess.OptimizationApplied {
			optimized++
		}
		if sess.Failed {
			failed++
		}
		total += sess.ResponseTime
	}
	n := float64(len(sessions))
	o.CacheHitRate = float64(hits) / n
	o.OptimizationRate = float64(optimized) / n
	o.FailureRate = float64(failed) / n
	o.AvgResponseTime = total / time.Duration(len(sessions))
	return o
}

// Tuning thresholds.
const (
	lowHitRate       = 0.6
	highHitRate      = 0.8
	minOptimizations = 50
	lowImprovement   = 0.3
	minInteractions  = 100
	strongSignal     = 0.5
	slowResponse     = 500 * time.Millisecond
	fastResponse     = 100 * time.Millisecond
)

// Tuning is the outcome of Recommendations.
type Tuning struct {
	GeneratedAt      time.Time     `json:"generated_at"`
	ActionsTaken     []string      `json:"actions_taken"`
	Recommendations  []string      `json:"recommendations"`
	CacheHitRate     float64       `json:"cache_hit_rate"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	OptimizationRate float64       `json:"optimization_rate"`
	TotalSessions    int           `json:"total_sessions"`
}

// Recommendations inspects the collected statistics and suggests tuning.
func (s *Service) Recommendations() Tuning {
	st := s.Stats()
	t := Tuning{
		GeneratedAt:      s.now(),
		ActionsTaken:     []string{},
		Recommendations:  []string{},
		CacheHitRate:     st.Cache.HitRate,
		AvgResponseTime:  st.Overview.AvgResponseTime,
		OptimizationRate: st.Overview.OptimizationRate,
		TotalSessions:    st.Overview.TotalSessions,
	}

	if st.Cache.Hits+st.Cache.Misses > 0 {
		l1Rate := float64(st.Cache.L1Hits) / float64(st.Cache.Hits+st.Cache.Misses)
		if l1Rate < lowHitRate {
			t.Recommendations = append(t.Recommendations,
				"Consider increasing the L1 cache size for better hit rates")
		}
		if st.Cache.L2Enabled && st.Cache.HitRate > highHitRate {
			t.ActionsTaken = append(t.ActionsTaken, "Multi-tier caching performing well")
		}
	}

	if q := st.QueryOptimization; q.TotalOptimizations > minOptimizations {
		if q.AvgImprovement < lowImprovement {
			t.Recommendations = append(t.Recommendations,
				"Query optimization showing limited improvement, review rewrite strategies")
		} else {
			t.ActionsTaken = append(t.ActionsTaken, "Query optimization providing good results")
		}
	}

	if f := st.Ranking.Feedback; f.TotalInteractions > minInteractions {
		if f.AvgSignal > strongSignal {
			t.ActionsTaken = append(t.ActionsTaken, "User interaction learning is improving results")
		} else {
			t.Recommendations = append(t.Recommendations,
				"Consider adjusting ranking weights based on user feedback")
		}
	}

	if st.Overview.TotalSessions > 0 {
		switch {
		case st.Overview.AvgResponseTime > slowResponse:
			t.Recommendations = append(t.Recommendations,
				"Response times are high, consider warming the cache or lowering the candidate pool size")
		case st.Overview.AvgResponseTime < fastResponse:
			t.ActionsTaken = append(t.ActionsTaken, "Excellent response time performance")
		}
	}

	if st.ANNBreaker == "open" {
		t.Recommendations = append(t.Recommendations,
			"The ANN circuit breaker is open, check the vector index")
	}
	return t
}
