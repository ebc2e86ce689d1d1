// Package rewrite implements rule-based query rewriting and the per-pattern
// performance profiles that drive it.
package rewrite

import (
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// Strategy names reported in Result.Strategy.
const (
	StrategyExpansion      = "expansion"
	StrategySimplification = "simplification"
	StrategyIntent         = "intent"
	StrategyProfile        = "profile"
	StrategyNone           = "none"
	StrategySkipped        = "skipped"
)

// Query patterns profiles are bucketed by.
const (
	PatternShort          = "short_query"
	PatternLong           = "long_query"
	PatternGenre          = "genre_query"
	PatternRecommendation = "recommendation_query"
	PatternGeneral        = "general_query"
)

// Hints a profile can carry.
const (
	HintSimplify = "simplify"
	HintExpand   = "expand"
)

const (
	minQueryLen = 3
	maxQueryLen = 200

	emaAlpha = 0.3

	slowLatency    = 500 * time.Millisecond
	lowSuccessRate = 0.8
)

// Candidate is one rewrite a strategy proposed.
type Candidate struct {
	Strategy string  `json:"strategy"`
	Query    string  `json:"query"`
	Weight   float64 `json:"weight"`
}

// Result is the outcome of Optimize.
type Result struct {
	Original         string      `json:"original"`
	Optimized        string      `json:"optimized"`
	Strategy         string      `json:"strategy"`
	ImprovementScore float64     `json:"improvement_score"`
	Candidates       []Candidate `json:"candidates,omitempty"`
}

// Applied reports whether the query was changed.
func (r Result) Applied() bool {
	return r.Strategy != StrategyNone && r.Strategy != StrategySkipped
}

// Profile is the observed performance of one query pattern.
type Profile struct {
	Pattern            string        `json:"pattern"`
	AvgLatency         time.Duration `json:"avg_latency"`
	SuccessRate        float64       `json:"success_rate"`
	TypicalResultCount float64       `json:"typical_result_count"`
	Hints              []string      `json:"hints,omitempty"`
	Observations       int           `json:"observations"`
}

func (p *Profile) needsHelp() bool {
	return p.AvgLatency > slowLatency || p.SuccessRate < lowSuccessRate
}

// Stats summarizes rewriter activity.
type Stats struct {
	TotalOptimizations int            `json:"total_optimizations"`
	ByStrategy         map[string]int `json:"by_strategy"`
	AvgImprovement     float64        `json:"avg_improvement"`
	ProfilesLearned    int            `json:"profiles_learned"`
}

// Weights are the fixed strategy weights; the highest applicable wins.
type Weights struct {
	Expansion      float64
	Simplification float64
	Intent         float64
	Profile        float64
}

// DefaultWeights returns the stock strategy weights.
func DefaultWeights() Weights {
	return Weights{Expansion: 0.3, Simplification: 0.2, Intent: 0.4, Profile: 0.5}
}

// Rewriter proposes a better query for retrieval. Safe for concurrent use.
type Rewriter struct {
	weights Weights
	total   *prometheus.CounterVec

	mu       sync.RWMutex
	profiles map[string]*Profile

	statsMu      sync.Mutex
	count        int
	byStrategy   map[string]int
	improvements float64
}

// New creates a Rewriter. total may be nil.
func New(weights Weights, total *prometheus.CounterVec) *Rewriter {
	return &Rewriter{
		weights:    weights,
		total:      total,
		profiles:   make(map[string]*Profile),
		byStrategy: make(map[string]int),
	}
}

// Optimize picks the highest weighted applicable rewrite of query.
func (r *Rewriter) Optimize(query string) Result {
	trimmed := strings.TrimSpace(query)
	res := Result{Original: query, Optimized: trimmed, Strategy: StrategyNone}

	if n := len([]rune(trimmed)); n < minQueryLen || n > maxQueryLen {
		res.Strategy = StrategySkipped
		r.record(res)
		return res
	}

	norm := text.Normalize(trimmed)
	tokens := len(strings.Fields(norm))
	propose := func(strategy, rewritten string, weight float64) {
		if rewritten == "" || rewritten == norm {
			return
		}
		res.Candidates = append(res.Candidates, Candidate{Strategy: strategy, Query: rewritten, Weight: weight})
	}

	if tokens <= 2 {
		propose(StrategyExpansion, expand(norm), r.weights.Expansion)
	}
	if tokens >= 6 {
		propose(StrategySimplification, simplify(norm), r.weights.Simplification)
	}
	propose(StrategyIntent, normalizeIntent(norm), r.weights.Intent)
	if p, ok := r.Profile(Pattern(norm)); ok && p.needsHelp() {
		propose(StrategyProfile, applyHints(norm, p.Hints), r.weights.Profile)
	}

	// strict comparison keeps the earlier declared strategy on ties
	best := -1
	for i, c := range res.Candidates {
		if best < 0 || c.Weight > res.Candidates[best].Weight {
			best = i
		}
	}
	if best >= 0 {
		res.Optimized = res.Candidates[best].Query
		res.Strategy = res.Candidates[best].Strategy
		res.ImprovementScore = res.Candidates[best].Weight
	}

	r.record(res)
	return res
}

func applyHints(q string, hints []string) string {
	for _, h := range hints {
		switch h {
		case HintSimplify:
			q = simplify(q)
		case HintExpand:
			q = expand(q)
		}
	}
	return q
}

func (r *Rewriter) record(res Result) {
	r.statsMu.Lock()
	r.count++
	r.byStrategy[res.Strategy]++
	r.improvements += res.ImprovementScore
	r.statsMu.Unlock()

	if r.total != nil {
		r.total.WithLabelValues(res.Strategy).Inc()
	}
}

// UpdateProfile folds one observation of query into its pattern's profile.
// The first observation seeds the averages; later ones are blended with an
// exponential moving average.
func (r *Rewriter) UpdateProfile(query string, latency time.Duration, successRate float64, resultCount int) {
	pattern := Pattern(query)
	successRate = min(1, max(0, successRate))

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[pattern]
	if !ok {
		p = &Profile{
			Pattern:            pattern,
			AvgLatency:         latency,
			SuccessRate:        successRate,
			TypicalResultCount: float64(resultCount),
		}
		r.profiles[pattern] = p
	} else {
		p.AvgLatency = time.Duration(emaAlpha*float64(latency) + (1-emaAlpha)*float64(p.AvgLatency))
		p.SuccessRate = emaAlpha*successRate + (1-emaAlpha)*p.SuccessRate
		p.TypicalResultCount = emaAlpha*float64(resultCount) + (1-emaAlpha)*p.TypicalResultCount
	}
	p.Observations++

	p.Hints = p.Hints[:0]
	if p.AvgLatency > slowLatency {
		p.Hints = append(p.Hints, HintSimplify)
	}
	if p.SuccessRate < lowSuccessRate {
		p.Hints = append(p.Hints, HintExpand)
	}
}

// Profile returns a copy of the profile for pattern.
func (r *Rewriter) Profile(pattern string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[pattern]
	if !ok {
		return Profile{}, false
	}
	return clone(p), true
}

// Profiles returns copies of all profiles ordered by pattern.
func (r *Rewriter) Profiles() []Profile {
	r.mu.RLock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, clone(p))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

func clone(p *Profile) Profile {
	out := *p
	out.Hints = append([]string(nil), p.Hints...)
	return out
}

// Stats returns a snapshot of rewriter activity.
func (r *Rewriter) Stats() Stats {
	r.mu.RLock()
	profiles := len(r.profiles)
	r.mu.RUnlock()

	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	s := Stats{
		TotalOptimizations: r.count,
		ByStrategy:         maps.Clone(r.byStrategy),
		ProfilesLearned:    profiles,
	}
	if r.count > 0 {
		s.AvgImprovement = r.improvements / float64(r.count)
	}
	return s
}
