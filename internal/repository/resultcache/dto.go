package resultcache

import (
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
)

// entryDTO is the wire form of a cached ranked list.
type entryDTO struct {
	Version             int            `json:"v"`
	RewrittenQuery      string         `json:"rewritten_query"`
	Strategy            string         `json:"strategy"`
	OptimizationApplied bool           `json:"optimization_applied"`
	TotalFound          int            `json:"total_found"`
	Candidates          []candidateDTO `json:"candidates"`
}

type candidateDTO struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Overview   string            `json:"overview,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Year       int               `json:"year,omitempty"`
	Popularity float64           `json:"popularity,omitempty"`
	Rating     float64           `json:"rating,omitempty"`
	VoteCount  int               `json:"vote_count,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	Semantic   float64           `json:"semantic"`
	Lexical    float64           `json:"lexical"`
	Metadata   float64           `json:"metadata"`
	Final      float64           `json:"final"`
	Rank       int               `json:"rank"`
}

// entryVersion changes whenever entryDTO changes shape; older entries are misses.
const entryVersion = 1

func toDTO(e *Entry) entryDTO {
	out := entryDTO{
		Version:             entryVersion,
		RewrittenQuery:      e.RewrittenQuery,
		Strategy:            e.Strategy,
		OptimizationApplied: e.OptimizationApplied,
		TotalFound:          e.TotalFound,
		Candidates:          make([]candidateDTO, len(e.Candidates)),
	}
	for i, c := range e.Candidates {
		m := c.Movie()
		s := c.Scores()
		out.Candidates[i] = candidateDTO{
			ID:         m.ID,
			Title:      m.Title,
			Overview:   m.Overview,
			Genres:     m.Genres,
			Year:       m.Year,
			Popularity: m.Popularity,
			Rating:     m.Rating,
			VoteCount:  m.VoteCount,
			Extra:      m.Extra,
			Semantic:   s.Semantic,
			Lexical:    s.Lexical,
			Metadata:   s.Metadata,
			Final:      s.Final,
			Rank:       c.Rank(),
		}
	}
	return out
}

func fromDTO(d *entryDTO) Entry {
	out := Entry{
		RewrittenQuery:      d.RewrittenQuery,
		Strategy:            d.Strategy,
		OptimizationApplied: d.OptimizationApplied,
		TotalFound:          d.TotalFound,
		Candidates:          make([]candidate.Candidate, len(d.Candidates)),
	}
	for i := range d.Candidates {
		c := &d.Candidates[i]
		m := movie.Movie{
			ID:         c.ID,
			Title:      c.Title,
			Overview:   c.Overview,
			Genres:     c.Genres,
			Year:       c.Year,
			Popularity: c.Popularity,
			Rating:     c.Rating,
			VoteCount:  c.VoteCount,
			Extra:      c.Extra,
		}
		scores := candidate.Scores{Semantic: c.Semantic, Lexical: c.Lexical, Metadata: c.Metadata, Final: c.Final}
		out.Candidates[i] = candidate.Reconstruct(m, scores, c.Rank)
	}
	return out
}
