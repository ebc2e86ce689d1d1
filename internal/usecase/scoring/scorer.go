// Package scoring blends ANN similarity with lexical and metadata evidence.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

const maxKeywords = 10

// Field weights for the lexical score.
const (
	titleWeight    = 3.0
	genresWeight   = 2.0
	overviewWeight = 1.0
)

// Metadata boosts.
const (
	genreBoost      = 0.15
	yearBoost       = 0.05
	popularityBoost = 0.1
	ratingBoost     = 0.1

	popularThreshold = 50.0
	ratingThreshold  = 7.0
	recentYears      = 5
	classicYears     = 30
)

// Config controls the score blend.
type Config struct {
	SemanticWeight float64
	LexicalWeight  float64
	MetadataWeight float64
	// MinSemantic drops hits below this ANN similarity before blending.
	MinSemantic float64
}

// DefaultConfig returns the stock blend.
func DefaultConfig() Config {
	return Config{SemanticWeight: 0.7, LexicalWeight: 0.2, MetadataWeight: 0.1, MinSemantic: 0.1}
}

// Scorer turns ANN hits into scored candidates. It holds no mutable state.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// New creates a Scorer. now defaults to time.Now.
func New(cfg Config, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{cfg: cfg, now: now}
}

// Score computes lexical, metadata and final scores for hits and returns
// them ordered by final score, ties by id, with ranks assigned. Hits without
// an id or with a non-finite similarity are dropped.
func (s *Scorer) Score(query string, hits []result.Result) []candidate.Candidate {
	keywords := text.Keywords(query, maxKeywords)
	currentYear := s.now().Year()

	out := make([]candidate.Candidate, 0, len(hits))
	for i := range hits {
		h := &hits[i]
		sim := h.Similarity()
		if h.ID() == "" || math.IsNaN(sim) || math.IsInf(sim, 0) || sim < s.cfg.MinSemantic {
			continue
		}

		c := candidate.New(h.Movie(), sim)
		lexical := Lexical(c, keywords)
		metadata := Metadata(c, query, currentYear)
		final := s.cfg.SemanticWeight*sim + s.cfg.LexicalWeight*lexical + s.cfg.MetadataWeight*metadata
		out = append(out, c.WithScores(lexical, metadata, final))
	}

	SortByFinal(out)
	for i := range out {
		out[i] = out[i].WithRank(i + 1)
	}
	return out
}

// SortByFinal orders cs by final score descending, ties by id ascending.
func SortByFinal(cs []candidate.Candidate) {
	slices.SortStableFunc(cs, func(a, b candidate.Candidate) int {
		if c := cmp.Compare(b.FinalScore(), a.FinalScore()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

// Lexical scores keyword coverage over title, genres and overview. Empty
// fields take no part in the normalization.
func Lexical(c candidate.Candidate, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	fields := []struct {
		value  string
		weight float64
	}{
		{c.Title(), titleWeight},
		{strings.Join(c.Genres(), " "), genresWeight},
		{c.Overview(), overviewWeight},
	}

	var score, total float64
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		lower := strings.ToLower(f.value)
		tokens := text.TokenSet(f.value)

		var matched float64
		for _, kw := range keywords {
			if _, ok := tokens[kw]; ok {
				matched += 1
			} else if strings.Contains(lower, kw) {
				matched += 0.5
			}
		}
		score += matched / float64(len(keywords)) * f.weight
		total += f.weight
	}
	if total == 0 {
		return 0
	}
	return score / total
}

// Metadata scores genre mentions in the query and catalog quality signals.
func Metadata(c candidate.Candidate, query string, currentYear int) float64 {
	var score float64
	for _, g := range c.Genres() {
		if text.ContainsPhrase(query, g) {
			score += genreBoost
		}
	}
	if year, ok := c.Year(); ok {
		if year >= currentYear-recentYears || year <= currentYear-classicYears {
			score += yearBoost
		}
	}
	if c.Popularity() > popularThreshold {
		score += popularityBoost
	}
	if c.Rating() > ratingThreshold {
		score += ratingBoost
	}
	return min(score, 1.0)
}
