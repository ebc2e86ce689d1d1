package evaluation

import (
	"cmp"
	"fmt"
	"slices"
)

const reportQueries = 3

// Case is one query of an evaluation set.
type Case struct {
	Query     string             `json:"query"`
	Results   []Doc              `json:"results"`
	Judgments map[string]float64 `json:"judgments,omitempty"`
}

// Aggregate holds the arithmetic means of per-query metrics.
type Aggregate struct {
	PrecisionAtK map[int]float64 `json:"precision_at_k"`
	RecallAtK    map[int]float64 `json:"recall_at_k"`
	NDCGAtK      map[int]float64 `json:"ndcg_at_k"`
	MAP          float64         `json:"map"`
	MRR          float64         `json:"mrr"`
	QueryCount   int             `json:"query_count"`
}

// Summary describes the evaluated set.
type Summary struct {
	TotalQueries         int     `json:"total_queries"`
	QueriesWithJudgments int     `json:"queries_with_judgments"`
	AvgResultsPerQuery   float64 `json:"avg_results_per_query"`
}

// SetResult is the outcome of EvaluateSet.
type SetResult struct {
	Individual []Result  `json:"individual"`
	Aggregate  Aggregate `json:"aggregate"`
	Summary    Summary   `json:"summary"`
}

// EvaluateSet evaluates every case and averages the metrics. Nothing is
// evaluated when any case carries invalid judgments.
func (e *Evaluator) EvaluateSet(cases []Case) (SetResult, error) {
	for i, c := range cases {
		if err := validateJudgments(c.Judgments); err != nil {
			return SetResult{}, fmt.Errorf("case %d: %w", i, err)
		}
	}

	out := SetResult{
		Individual: make([]Result, 0, len(cases)),
		Aggregate: Aggregate{
			PrecisionAtK: make(map[int]float64, len(e.cfg.Ks)),
			RecallAtK:    make(map[int]float64, len(e.cfg.Ks)),
			NDCGAtK:      make(map[int]float64, len(e.cfg.Ks)),
		},
	}
	if len(cases) == 0 {
		return out, nil
	}

	var results int
	for i, c := range cases {
		r, err := e.Evaluate(c.Query, c.Results, c.Judgments)
		if err != nil {
			return SetResult{}, fmt.Errorf("case %d: %w", i, err)
		}
		out.Individual = append(out.Individual, r)

		results += r.ResultsAnalyzed
		if r.Source != SourceAutomatic {
			out.Summary.QueriesWithJudgments++
		}
		for _, k := range e.cfg.Ks {
			out.Aggregate.PrecisionAtK[k] += r.PrecisionAtK[k]
			out.Aggregate.RecallAtK[k] += r.RecallAtK[k]
			out.Aggregate.NDCGAtK[k] += r.NDCGAtK[k]
		}
		out.Aggregate.MAP += r.MAP
		out.Aggregate.MRR += r.MRR
	}

	n := float64(len(cases))
	for _, k := range e.cfg.Ks {
		out.Aggregate.PrecisionAtK[k] /= n
		out.Aggregate.RecallAtK[k] /= n
		out.Aggregate.NDCGAtK[k] /= n
	}
	out.Aggregate.MAP /= n
	out.Aggregate.MRR /= n
	out.Aggregate.QueryCount = len(cases)

	out.Summary.TotalQueries = len(cases)
	out.Summary.AvgResultsPerQuery = float64(results) / n
	return out, nil
}

// Grade buckets overall quality.
type Grade string

// Grades from best to worst.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// QueryScore is a per-query highlight in a report.
type QueryScore struct {
	Query        string   `json:"query"`
	NDCGAt5      float64  `json:"ndcg_at_5"`
	PrecisionAt5 float64  `json:"precision_at_5"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// KeyMetrics are the headline numbers of a report.
type KeyMetrics struct {
	NDCGAt5      float64 `json:"avg_ndcg_at_5"`
	PrecisionAt5 float64 `json:"avg_precision_at_5"`
	MAP          float64 `json:"avg_map"`
	MRR          float64 `json:"avg_mrr"`
}

// Report is a graded, human oriented view of a SetResult.
type Report struct {
	Grade           Grade        `json:"overall_grade"`
	KeyMetrics      KeyMetrics   `json:"key_metrics"`
	Summary         Summary      `json:"summary"`
	TopQueries      []QueryScore `json:"top_performing_queries"`
	Opportunities   []QueryScore `json:"improvement_opportunities"`
	Recommendations []string     `json:"recommendations"`
}

// BuildReport grades a SetResult and lists its best and worst queries.
func BuildReport(set SetResult) Report {
	agg := set.Aggregate
	rep := Report{
		KeyMetrics: KeyMetrics{
			NDCGAt5:      agg.NDCGAtK[5],
			PrecisionAt5: agg.PrecisionAtK[5],
			MAP:          agg.MAP,
			MRR:          agg.MRR,
		},
		Summary:         set.Summary,
		TopQueries:      []QueryScore{},
		Opportunities:   []QueryScore{},
		Recommendations: []string{},
	}
	rep.Grade = grade(rep.KeyMetrics.NDCGAt5, rep.KeyMetrics.PrecisionAt5)

	byNDCG := slices.Clone(set.Individual)
	slices.SortStableFunc(byNDCG, func(a, b Result) int {
		if c := cmp.Compare(b.NDCGAtK[5], a.NDCGAtK[5]); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	for _, r := range byNDCG[:min(reportQueries, len(byNDCG))] {
		rep.TopQueries = append(rep.TopQueries, QueryScore{
			Query: r.Query, NDCGAt5: r.NDCGAtK[5], PrecisionAt5: r.PrecisionAtK[5],
		})
	}
	for i := len(byNDCG) - 1; i >= max(0, len(byNDCG)-reportQueries); i-- {
		r := byNDCG[i]
		rep.Opportunities = append(rep.Opportunities, QueryScore{
			Query: r.Query, NDCGAt5: r.NDCGAtK[5], PrecisionAt5: r.PrecisionAtK[5],
			Suggestions: suggestions(r),
		})
	}

	if agg.PrecisionAtK[5] < 0.5 {
		rep.Recommendations = append(rep.Recommendations,
			"improve result relevance through better query processing and ranking")
	}
	if agg.RecallAtK[5] < 0.6 {
		rep.Recommendations = append(rep.Recommendations,
			"expand retrieval coverage to capture more relevant documents")
	}
	if agg.MAP < 0.4 {
		rep.Recommendations = append(rep.Recommendations,
			"improve overall ranking quality through better scoring weights")
	}
	return rep
}

func grade(ndcg5, p5 float64) Grade {
	switch {
	case ndcg5 >= 0.8 && p5 >= 0.7:
		return GradeA
	case ndcg5 >= 0.6 && p5 >= 0.5:
		return GradeB
	case ndcg5 >= 0.4 && p5 >= 0.3:
		return GradeC
	default:
		return GradeD
	}
}

func suggestions(r Result) []string {
	var out []string
	if r.PrecisionAtK[5] < 0.3 {
		out = append(out, "low precision: irrelevant results, improve query understanding")
	}
	if r.RecallAtK[10] < 0.5 {
		out = append(out, "low recall: relevant documents missing, expand retrieval coverage")
	}
	if r.NDCGAtK[5] < 0.4 {
		out = append(out, "low NDCG: relevant documents ranked too low, improve ordering")
	}
	if r.TotalRelevant == 0 {
		out = append(out, "no relevant documents: check query processing and indexing")
	}
	return out
}
