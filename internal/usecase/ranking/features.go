package ranking

import (
	"math"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// Feature names, as reported by Explain.
const (
	FeatureSemantic   = "semantic"
	FeatureLexical    = "lexical"
	FeatureMetadata   = "metadata"
	FeatureTitle      = "title_match"
	FeatureGenre      = "genre_match"
	FeaturePopularity = "popularity"
	FeatureRating     = "rating"
	FeatureVoteCount  = "vote_count"
	FeatureYear       = "year_relevance"
	FeatureFreshness  = "freshness"
	FeatureFeedback   = "feedback"
	FeaturePersonal   = "personalization"
)

const popularitySaturation = 100.0

// Features is the ranking feature vector of one candidate. All values are in [0,1].
type Features struct {
	Semantic   float64
	Lexical    float64
	Metadata   float64
	Title      float64
	Genre      float64
	Popularity float64
	Rating     float64
	VoteCount  float64
	Year       float64
	Freshness  float64
	Feedback   float64
}

// Weights of the linear ranking model.
type Weights struct {
	Semantic   float64 `yaml:"semantic"`
	Lexical    float64 `yaml:"lexical"`
	Metadata   float64 `yaml:"metadata"`
	Title      float64 `yaml:"title"`
	Genre      float64 `yaml:"genre"`
	Popularity float64 `yaml:"popularity"`
	Rating     float64 `yaml:"rating"`
	VoteCount  float64 `yaml:"vote_count"`
	Year       float64 `yaml:"year"`
	Freshness  float64 `yaml:"freshness"`
	Feedback   float64 `yaml:"feedback"`
}

// DefaultWeights returns the stock feature weights.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   1.0,
		Lexical:    1.0,
		Metadata:   1.0,
		Title:      2.0,
		Genre:      1.5,
		Popularity: 1.1,
		Rating:     1.3,
		VoteCount:  1.0,
		Year:       1.2,
		Freshness:  0.9,
		Feedback:   1.0,
	}
}

// contributions returns weight*feature for every feature, in a fixed order.
func (w Weights) contributions(f Features) []contribution {
	return []contribution{
		{FeatureSemantic, w.Semantic * f.Semantic},
		{FeatureLexical, w.Lexical * f.Lexical},
		{FeatureMetadata, w.Metadata * f.Metadata},
		{FeatureTitle, w.Title * f.Title},
		{FeatureGenre, w.Genre * f.Genre},
		{FeaturePopularity, w.Popularity * f.Popularity},
		{FeatureRating, w.Rating * f.Rating},
		{FeatureVoteCount, w.VoteCount * f.VoteCount},
		{FeatureYear, w.Year * f.Year},
		{FeatureFreshness, w.Freshness * f.Freshness},
		{FeatureFeedback, w.Feedback * f.Feedback},
	}
}

type contribution struct {
	name  string
	value float64
}

// query is the parsed form of the query shared by every candidate.
type query struct {
	raw    string
	tokens map[string]struct{}
}

func parseQuery(q string) query {
	return query{raw: q, tokens: text.TokenSet(q)}
}

func extract(q query, c candidate.Candidate, signal float64, currentYear int) Features {
	f := Features{
		Semantic:   c.SemanticScore(),
		Lexical:    c.LexicalScore(),
		Metadata:   c.MetadataScore(),
		Title:      text.Overlap(q.tokens, text.TokenSet(c.Title())),
		Genre:      genreMatch(q.raw, c.Genres()),
		Popularity: min(math.Log1p(max(c.Popularity(), 0))/math.Log1p(popularitySaturation), 1),
		Rating:     clamp01(c.Rating() / 10),
		VoteCount:  min(math.Log1p(float64(max(c.VoteCount(), 0)))/10, 1),
		Feedback:   clamp01(signal),
	}

	year, known := c.Year()
	f.Year = yearRelevance(year, known, currentYear)
	f.Freshness = freshness(year, known, currentYear)
	return f
}

func genreMatch(q string, genres []string) float64 {
	if len(genres) == 0 {
		return 0
	}
	n := 0
	for _, g := range genres {
		if text.ContainsPhrase(q, g) {
			n++
		}
	}
	return float64(n) / float64(len(genres))
}

func yearRelevance(year int, known bool, currentYear int) float64 {
	if !known {
		return 0.5
	}
	switch age := currentYear - year; {
	case age <= 1:
		return 0.8
	case age <= 10:
		return 1.0
	case age <= 30:
		return 0.7
	default:
		return 0.9
	}
}

func freshness(year int, known bool, currentYear int) float64 {
	if !known {
		return 0
	}
	switch age := currentYear - year; {
	case age <= 2:
		return 0.2
	case age <= 5:
		return 0.1
	default:
		return 0
	}
}

// personalization scores how well c matches the user's stated preferences.
func personalization(c candidate.Candidate, u *request.UserContext) float64 {
	if u.IsEmpty() {
		return 0
	}

	var score float64
	if len(u.PreferredGenres) > 0 {
		have := make(map[string]struct{}, len(c.Genres()))
		for _, g := range c.Genres() {
			have[strings.ToLower(g)] = struct{}{}
		}
		matched := 0
		for _, g := range u.PreferredGenres {
			if _, ok := have[strings.ToLower(g)]; ok {
				matched++
			}
		}
		score += 0.5 * float64(matched) / float64(len(u.PreferredGenres))
	}

	if year, ok := c.Year(); ok && (u.YearFrom != 0 || u.YearTo != 0) {
		if (u.YearFrom == 0 || year >= u.YearFrom) && (u.YearTo == 0 || year <= u.YearTo) {
			score += 0.3
		}
	}
	if u.MinRating > 0 && c.Rating() >= u.MinRating {
		score += 0.2
	}
	return min(score, 1)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(1, max(0, v))
}
