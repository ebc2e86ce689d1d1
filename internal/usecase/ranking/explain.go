package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
)

const explainTop = 3

// Explanation breaks a hybrid ranking score into per-feature contributions.
type Explanation struct {
	DocumentID    string             `json:"document_id"`
	Score         float64            `json:"score"`
	Features      Features           `json:"features"`
	Contributions map[string]float64 `json:"contributions"`
	Summary       string             `json:"summary"`
}

// Explain reports why c scores what it does under the hybrid model.
func (r *Ranker) Explain(q string, c candidate.Candidate, signal float64, user *request.UserContext) Explanation {
	f := extract(parseQuery(q), c, signal, r.now().Year())
	cts := r.cfg.Weights.contributions(f)
	if r.cfg.PersonalizationWeight > 0 {
		cts = append(cts, contribution{FeaturePersonal, r.cfg.PersonalizationWeight * personalization(c, user)})
	}

	exp := Explanation{
		DocumentID:    c.ID(),
		Features:      f,
		Contributions: make(map[string]float64, len(cts)),
	}
	for _, ct := range cts {
		exp.Contributions[ct.name] = ct.value
		exp.Score += ct.value
	}

	slices.SortStableFunc(cts, func(a, b contribution) int { return cmp.Compare(b.value, a.value) })
	parts := make([]string, 0, explainTop)
	for _, ct := range cts[:min(explainTop, len(cts))] {
		if ct.value <= 0 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %.2f", strings.ReplaceAll(ct.name, "_", " "), ct.value))
	}
	if len(parts) == 0 {
		exp.Summary = "no positive ranking signals"
	} else {
		exp.Summary = "driven by " + strings.Join(parts, ", ")
	}
	return exp
}
