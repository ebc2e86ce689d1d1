package evaluation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// Source says where the judgments used for an evaluation came from.
type Source string

// Judgment sources.
const (
	SourceExplicit  Source = "explicit"
	SourceManual    Source = "manual"
	SourceAutomatic Source = "automatic"
)

// Automatic judgment blend.
const (
	autoSemantic = 0.4
	autoTitle    = 0.3
	autoContent  = 0.2
	autoMetadata = 0.1

	metaGenre  = 0.3
	metaYear   = 0.2
	metaPeople = 0.1
)

// people fields whose overlap with the query counts as a metadata match.
var peopleFields = []string{"director", "cast", "actors"}

// Judgment is a relevance score for one query and document.
type Judgment struct {
	Query      string  `json:"query"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

func (j Judgment) validate() error {
	if strings.TrimSpace(j.Query) == "" {
		return domain.NewInputError("query", "must not be empty")
	}
	if j.DocumentID == "" {
		return domain.NewInputError("document_id", "must not be empty")
	}
	if !validScore(j.Score) {
		return domain.NewInputError("score", fmt.Sprintf("must be within [0,1], got %v", j.Score))
	}
	return nil
}

func validScore(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= 1
}

// validateJudgments checks a caller supplied judgment map.
func validateJudgments(m map[string]float64) error {
	for id, s := range m {
		if id == "" {
			return domain.NewInputError("judgments", "document id must not be empty")
		}
		if !validScore(s) {
			return domain.NewInputError("judgments", fmt.Sprintf("score for %q must be within [0,1], got %v", id, s))
		}
	}
	return nil
}

// Doc is one ranked result under evaluation.
type Doc struct {
	ID       string            `json:"id"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content,omitempty"`
	Score    float64           `json:"score"`
	Genres   []string          `json:"genres,omitempty"`
	Year     int               `json:"year,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// automaticJudgments derives a relevance score per document from the
// retrieval score and query overlap.
func automaticJudgments(query string, docs []Doc) map[string]float64 {
	qTokens := text.TokenSet(query)
	out := make(map[string]float64, len(docs))
	for _, d := range docs {
		score := autoSemantic * min(max(d.Score, 0), 1)
		if d.Title != "" {
			score += autoTitle * text.Overlap(qTokens, text.TokenSet(d.Title))
		}
		if d.Content != "" {
			score += autoContent * text.Overlap(qTokens, text.TokenSet(d.Content))
		}
		score += autoMetadata * metadataMatch(query, qTokens, d)
		out[d.ID] = min(score, 1)
	}
	return out
}

func metadataMatch(query string, qTokens map[string]struct{}, d Doc) float64 {
	var score float64
	for _, g := range d.Genres {
		if text.ContainsPhrase(query, g) {
			score += metaGenre
		}
	}
	if d.Year > 0 && strings.Contains(query, strconv.Itoa(d.Year)) {
		score += metaYear
	}
	for _, f := range peopleFields {
		v, ok := d.Metadata[f]
		if !ok {
			continue
		}
		for t := range text.TokenSet(v) {
			if _, hit := qTokens[t]; hit {
				score += metaPeople
				break
			}
		}
	}
	return min(score, 1)
}
