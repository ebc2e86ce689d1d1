// Package ranking orders scored candidates with a weighted feature model,
// optional personalization and a diversity pass.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
)

// Strategy selects how candidates are ordered.
type Strategy string

// Ranking strategies.
const (
	Hybrid     Strategy = "hybrid"
	Semantic   Strategy = "semantic"
	Popularity Strategy = "popularity"
	Temporal   Strategy = "temporal"
	Diversity  Strategy = "diversity"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	switch s {
	case Hybrid, Semantic, Popularity, Temporal, Diversity:
		return true
	}
	return false
}

const temporalDecay = 0.1

// Config controls the ranker.
type Config struct {
	Weights               Weights
	PersonalizationWeight float64
	RelevanceWeight       float64
	DiversityWeight       float64
	// GuardWindow is how many leading positions must not be a single
	// genre/decade cluster when the pool offers an alternative.
	GuardWindow int
	Strategy    Strategy
}

// DefaultConfig returns the stock ranker configuration.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		RelevanceWeight: 0.6,
		DiversityWeight: 0.4,
		GuardWindow:     5,
		Strategy:        Hybrid,
	}
}

// Ranker produces the final order. It holds no mutable state.
type Ranker struct {
	cfg Config
	now func() time.Time
}

// New creates a Ranker. now defaults to time.Now.
func New(cfg Config, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	if !cfg.Strategy.IsValid() {
		cfg.Strategy = Hybrid
	}
	return &Ranker{cfg: cfg, now: now}
}

// Strategy returns the configured default strategy.
func (r *Ranker) Strategy() Strategy { return r.cfg.Strategy }

// Rank orders candidates with the configured strategy. signals maps document
// ids to feedback signals; user may be nil. limit 0 keeps every candidate.
// The output is independent of the input order.
func (r *Ranker) Rank(
	q string, cs []candidate.Candidate, signals map[string]float64, user *request.UserContext, limit int,
) ([]candidate.Candidate, error) {
	return r.RankWith(r.cfg.Strategy, q, cs, signals, user, limit)
}

// RankWith orders candidates with an explicit strategy.
func (r *Ranker) RankWith(
	strategy Strategy, q string, cs []candidate.Candidate, signals map[string]float64,
	user *request.UserContext, limit int,
) ([]candidate.Candidate, error) {
	if !strategy.IsValid() {
		return nil, domain.NewInputError("strategy", fmt.Sprintf("unknown ranking strategy %q", strategy),
			"use one of: hybrid, semantic, popularity, temporal, diversity")
	}
	pool, err := canonical(cs)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []candidate.Candidate{}, nil
	}

	currentYear := r.now().Year()
	var ordered []candidate.Candidate
	switch strategy {
	case Semantic:
		ordered = sortBy(pool, func(c candidate.Candidate) float64 { return c.SemanticScore() })
	case Popularity:
		ordered = sortBy(pool, popularityScore)
	case Temporal:
		ordered = sortBy(pool, func(c candidate.Candidate) float64 { return temporalScore(c, currentYear) })
	case Diversity:
		ordered = r.diversify(sortBy(pool, func(c candidate.Candidate) float64 { return c.FinalScore() }), limit)
	default:
		parsed := parseQuery(q)
		ordered = r.diversify(sortBy(pool, func(c candidate.Candidate) float64 {
			return r.score(parsed, c, signals[c.ID()], user, currentYear)
		}), limit)
	}

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	for i := range ordered {
		ordered[i] = ordered[i].WithRank(i + 1)
	}
	return ordered, nil
}

func (r *Ranker) score(
	q query, c candidate.Candidate, signal float64, user *request.UserContext, currentYear int,
) float64 {
	var total float64
	for _, ct := range r.cfg.Weights.contributions(extract(q, c, signal, currentYear)) {
		total += ct.value
	}
	if r.cfg.PersonalizationWeight > 0 {
		total += r.cfg.PersonalizationWeight * personalization(c, user)
	}
	return total
}

// canonical validates cs and returns a copy sorted by id. Duplicate ids
// collapse to the candidate with the higher final score.
func canonical(cs []candidate.Candidate) ([]candidate.Candidate, error) {
	out := make([]candidate.Candidate, 0, len(cs))
	for i, c := range cs {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: candidate %d (id %q) has an empty id or non-finite score",
				domain.ErrDataContract, i, c.ID())
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b candidate.Candidate) int {
		if c := cmp.Compare(a.ID(), b.ID()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.FinalScore(), a.FinalScore()); c != 0 {
			return c
		}
		return cmp.Compare(b.SemanticScore(), a.SemanticScore())
	})
	return slices.CompactFunc(out, func(a, b candidate.Candidate) bool { return a.ID() == b.ID() }), nil
}

// sortBy stamps each candidate with score(c) as its final score and orders
// by it descending, ties by id.
func sortBy(cs []candidate.Candidate, score func(candidate.Candidate) float64) []candidate.Candidate {
	out := make([]candidate.Candidate, len(cs))
	for i, c := range cs {
		s := score(c)
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		out[i] = c.WithFinal(s)
	}
	slices.SortStableFunc(out, func(a, b candidate.Candidate) int {
		if c := cmp.Compare(b.FinalScore(), a.FinalScore()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

func popularityScore(c candidate.Candidate) float64 {
	pop := min(max(c.Popularity(), 0)/popularitySaturation, 1)
	rating := clamp01(c.Rating() / 10)
	votes := min(math.Log1p(float64(max(c.VoteCount(), 0)))/10, 1)
	return (pop + rating + votes) / 3
}

// temporalScore decays the relevance score with age; classics get a lift.
func temporalScore(c candidate.Candidate, currentYear int) float64 {
	age := 0
	if year, ok := c.Year(); ok {
		age = max(currentYear-year, 0)
	}
	factor := math.Exp(-temporalDecay * float64(age) / 10)
	if age > 30 {
		factor *= 1.2
	}
	return c.FinalScore() * factor
}
