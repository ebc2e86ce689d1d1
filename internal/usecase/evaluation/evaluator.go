// Package evaluation computes information retrieval quality metrics for
// ranked result lists against manual or automatic relevance judgments.
package evaluation

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// DefaultKs are the cutoffs metrics are reported at.
var DefaultKs = []int{1, 3, 5, 10, 20}

// Config controls the evaluator.
type Config struct {
	Threshold float64
	Ks        []int
}

// DefaultConfig returns the stock evaluator configuration.
func DefaultConfig() Config {
	return Config{Threshold: 0.5, Ks: slices.Clone(DefaultKs)}
}

// Result holds the metrics of one evaluated query.
type Result struct {
	Query           string          `json:"query"`
	PrecisionAtK    map[int]float64 `json:"precision_at_k"`
	RecallAtK       map[int]float64 `json:"recall_at_k"`
	NDCGAtK         map[int]float64 `json:"ndcg_at_k"`
	MAP             float64         `json:"map"`
	MRR             float64         `json:"mrr"`
	TotalRelevant   int             `json:"total_relevant"`
	ResultsAnalyzed int             `json:"results_analyzed"`
	Source          Source          `json:"source"`
	JudgmentCount   int             `json:"judgment_count"`
}

// Evaluator scores result lists. Stored judgments are keyed by normalized
// query text and kept until ClearJudgments. Safe for concurrent use.
type Evaluator struct {
	cfg Config

	mu        sync.RWMutex
	judgments map[string]map[string]float64
}

// New creates an Evaluator.
func New(cfg Config) *Evaluator {
	if len(cfg.Ks) == 0 {
		cfg.Ks = slices.Clone(DefaultKs)
	}
	return &Evaluator{cfg: cfg, judgments: make(map[string]map[string]float64)}
}

// AddJudgment stores a manual judgment, replacing any earlier one for the
// same query and document.
func (e *Evaluator) AddJudgment(j Judgment) error {
	return e.AddJudgments([]Judgment{j})
}

// AddJudgments stores judgments atomically: nothing is stored if any is invalid.
func (e *Evaluator) AddJudgments(js []Judgment) error {
	for _, j := range js {
		if err := j.validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, j := range js {
		q := text.Normalize(j.Query)
		if e.judgments[q] == nil {
			e.judgments[q] = make(map[string]float64)
		}
		e.judgments[q][j.DocumentID] = j.Score
	}
	return nil
}

// ClearJudgments drops every stored judgment.
func (e *Evaluator) ClearJudgments() {
	e.mu.Lock()
	e.judgments = make(map[string]map[string]float64)
	e.mu.Unlock()
}

// JudgedQueries returns the number of queries with stored judgments.
func (e *Evaluator) JudgedQueries() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.judgments)
}

func (e *Evaluator) stored(query string) map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	js, ok := e.judgments[text.Normalize(query)]
	if !ok {
		return nil
	}
	return maps.Clone(js)
}

// Evaluate computes metrics for docs in ranked order. Judgments come from
// the explicit map when non-empty, then from stored manual judgments for the
// query, and are derived automatically otherwise. A document listed more than
// once counts at its first position only.
func (e *Evaluator) Evaluate(query string, docs []Doc, explicit map[string]float64) (Result, error) {
	if err := validateJudgments(explicit); err != nil {
		return Result{}, err
	}
	docs = uniqueDocs(docs)

	judgments, source := explicit, SourceExplicit
	if len(judgments) == 0 {
		judgments, source = e.stored(query), SourceManual
	}
	if len(judgments) == 0 {
		judgments, source = automaticJudgments(query, docs), SourceAutomatic
	}

	relevant := make([]bool, len(docs))
	for i, d := range docs {
		relevant[i] = judgments[d.ID] >= e.cfg.Threshold
	}
	totalRelevant := 0
	for _, s := range judgments {
		if s >= e.cfg.Threshold {
			totalRelevant++
		}
	}

	res := Result{
		Query:           query,
		PrecisionAtK:    make(map[int]float64, len(e.cfg.Ks)),
		RecallAtK:       make(map[int]float64, len(e.cfg.Ks)),
		NDCGAtK:         make(map[int]float64, len(e.cfg.Ks)),
		TotalRelevant:   totalRelevant,
		ResultsAnalyzed: len(docs),
		Source:          source,
		JudgmentCount:   len(judgments),
	}

	ideal := make([]float64, 0, len(judgments))
	for _, s := range judgments {
		ideal = append(ideal, s)
	}
	slices.SortFunc(ideal, func(a, b float64) int { return cmp.Compare(b, a) })
	gains := make([]float64, len(docs))
	for i, d := range docs {
		gains[i] = judgments[d.ID]
	}

	for _, k := range e.cfg.Ks {
		hits := countRelevant(relevant, k)
		if totalRelevant == 0 {
			res.PrecisionAtK[k], res.RecallAtK[k], res.NDCGAtK[k] = 0, 0, 0
			continue
		}
		res.PrecisionAtK[k] = float64(hits) / float64(k)
		res.RecallAtK[k] = float64(hits) / float64(totalRelevant)
		if idcg := dcg(ideal, k); idcg > 0 {
			res.NDCGAtK[k] = dcg(gains, k) / idcg
		}
	}

	if totalRelevant == 0 {
		return res, nil
	}

	var precisionSum float64
	seen := 0
	for i, rel := range relevant {
		if !rel {
			continue
		}
		seen++
		precisionSum += float64(seen) / float64(i+1)
		if seen == 1 {
			res.MRR = 1 / float64(i+1)
		}
	}
	res.MAP = precisionSum / float64(totalRelevant)
	return res, nil
}

func uniqueDocs(docs []Doc) []Doc {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func countRelevant(relevant []bool, k int) int {
	n := 0
	for _, r := range relevant[:min(k, len(relevant))] {
		if r {
			n++
		}
	}
	return n
}

// dcg sums gains over the first k ranks. Rank 1 is undiscounted; rank i>1
// is divided by log2(i+1).
func dcg(gains []float64, k int) float64 {
	var sum float64
	for i, g := range gains[:min(k, len(gains))] {
		rank := i + 1
		if rank == 1 {
			sum += g
			continue
		}
		sum += g / math.Log2(float64(rank+1))
	}
	return sum
}
