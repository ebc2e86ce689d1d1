// Package candidate defines the unit flowing through scoring and ranking.
package candidate

import (
	"maps"
	"math"
	"slices"

	"github.com/kailas-cloud/cinerank/internal/domain/movie"
)

// Scores groups the per-stage scores of a candidate.
type Scores struct {
	Semantic float64
	Lexical  float64
	Metadata float64
	Final    float64
}

// Candidate is an immutable document under consideration for a query.
// Modifiers return copies; nothing mutates a Candidate in place.
type Candidate struct {
	movie  movie.Movie
	scores Scores
	rank   int
}

// New creates a candidate from a hydrated movie and its ANN similarity.
func New(m movie.Movie, semantic float64) Candidate {
	return Candidate{movie: m.Clone(), scores: Scores{Semantic: semantic}}
}

// Reconstruct restores a candidate with all of its scores (used by the result cache).
func Reconstruct(m movie.Movie, s Scores, rank int) Candidate {
	return Candidate{movie: m.Clone(), scores: s, rank: rank}
}

// ID returns the document identifier.
func (c Candidate) ID() string { return c.movie.ID }

// Title returns the movie title.
func (c Candidate) Title() string { return c.movie.Title }

// Overview returns the movie synopsis.
func (c Candidate) Overview() string { return c.movie.Overview }

// Genres returns a copy of the genre list.
func (c Candidate) Genres() []string { return slices.Clone(c.movie.Genres) }

// Year returns the release year and whether it is known.
func (c Candidate) Year() (int, bool) { return c.movie.Year, c.movie.HasYear() }

// Popularity returns the catalog popularity.
func (c Candidate) Popularity() float64 { return c.movie.Popularity }

// Rating returns the average rating on a 0-10 scale.
func (c Candidate) Rating() float64 { return c.movie.Rating }

// VoteCount returns the number of ratings.
func (c Candidate) VoteCount() int { return c.movie.VoteCount }

// RawMetadata returns a copy of the passthrough fields.
func (c Candidate) RawMetadata() map[string]string { return maps.Clone(c.movie.Extra) }

// Movie returns a copy of the underlying catalog record.
func (c Candidate) Movie() movie.Movie { return c.movie.Clone() }

// SemanticScore returns the ANN similarity.
func (c Candidate) SemanticScore() float64 { return c.scores.Semantic }

// LexicalScore returns the keyword overlap score.
func (c Candidate) LexicalScore() float64 { return c.scores.Lexical }

// MetadataScore returns the metadata boost score.
func (c Candidate) MetadataScore() float64 { return c.scores.Metadata }

// FinalScore returns the score the candidate is ordered by.
func (c Candidate) FinalScore() float64 { return c.scores.Final }

// Scores returns all scores.
func (c Candidate) Scores() Scores { return c.scores }

// Rank returns the 1-based position, 0 when unranked.
func (c Candidate) Rank() int { return c.rank }

// WithScores returns a copy carrying the lexical, metadata and final scores.
func (c Candidate) WithScores(lexical, metadata, final float64) Candidate {
	c.scores.Lexical = lexical
	c.scores.Metadata = metadata
	c.scores.Final = final
	return c
}

// WithFinal returns a copy with a new final score.
func (c Candidate) WithFinal(final float64) Candidate {
	c.scores.Final = final
	return c
}

// WithRank returns a copy with a new rank.
func (c Candidate) WithRank(rank int) Candidate {
	c.rank = rank
	return c
}

// Valid reports whether the candidate satisfies the data contract:
// a non-empty id and finite scores.
func (c Candidate) Valid() bool {
	if c.movie.ID == "" {
		return false
	}
	for _, s := range []float64{c.scores.Semantic, c.scores.Lexical, c.scores.Metadata, c.scores.Final} {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return false
		}
	}
	return true
}

// IDs returns the document ids of cs in order.
func IDs(cs []Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID()
	}
	return ids
}
