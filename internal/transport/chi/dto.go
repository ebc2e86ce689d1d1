package chi

import (
	"time"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/session"
	"github.com/kailas-cloud/cinerank/internal/usecase/evaluation"
	"github.com/kailas-cloud/cinerank/internal/usecase/ranking"
	searchuc "github.com/kailas-cloud/cinerank/internal/usecase/search"
)

type errorResponse struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Field       string   `json:"field,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type userContextDTO struct {
	PreferredGenres []string `json:"preferred_genres" validate:"max=20,dive,required"`
	YearFrom        int      `json:"year_from" validate:"min=0"`
	YearTo          int      `json:"year_to" validate:"min=0"`
	MinRating       float64  `json:"min_rating"`
}

type searchRequest struct {
	Query           string            `json:"query"`
	Filters         map[string]string `json:"filters"`
	Limit           int               `json:"limit" validate:"min=0"`
	UserContext     *userContextDTO   `json:"user_context"`
	RankingStrategy string            `json:"ranking_strategy"`
	Explain         bool              `json:"explain"`
}

func (r *searchRequest) toQuery() searchuc.Query {
	q := searchuc.Query{
		Text:    r.Query,
		Filters: r.Filters,
		Limit:   r.Limit,
		Ranking: r.RankingStrategy,
		Explain: r.Explain,
	}
	if u := r.UserContext; u != nil {
		q.User = &request.UserContext{
			PreferredGenres: u.PreferredGenres,
			YearFrom:        u.YearFrom,
			YearTo:          u.YearTo,
			MinRating:       u.MinRating,
		}
	}
	return q
}

type scoresDTO struct {
	Semantic float64 `json:"semantic"`
	Lexical  float64 `json:"lexical"`
	Metadata float64 `json:"metadata"`
	Final    float64 `json:"final"`
}

type resultItem struct {
	ID         string            `json:"id"`
	Rank       int               `json:"rank"`
	Title      string            `json:"title"`
	Overview   string            `json:"overview,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Year       int               `json:"year,omitempty"`
	Popularity float64           `json:"popularity"`
	Rating     float64           `json:"rating"`
	VoteCount  int               `json:"vote_count"`
	Scores     scoresDTO         `json:"scores"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func resultFromCandidate(c candidate.Candidate) resultItem {
	sc := c.Scores()
	year, _ := c.Year()
	return resultItem{
		ID:         c.ID(),
		Rank:       c.Rank(),
		Title:      c.Title(),
		Overview:   c.Overview(),
		Genres:     c.Genres(),
		Year:       year,
		Popularity: c.Popularity(),
		Rating:     c.Rating(),
		VoteCount:  c.VoteCount(),
		Scores: scoresDTO{
			Semantic: sc.Semantic,
			Lexical:  sc.Lexical,
			Metadata: sc.Metadata,
			Final:    sc.Final,
		},
		Metadata: c.RawMetadata(),
	}
}

type searchResponse struct {
	SessionID           string                `json:"session_id,omitempty"`
	Results             []resultItem          `json:"results"`
	TotalFound          int                   `json:"total_found"`
	SearchTimeMS        float64               `json:"search_time_ms"`
	CacheHit            bool                  `json:"cache_hit"`
	OptimizationApplied bool                  `json:"optimization_applied"`
	OriginalQuery       string                `json:"original_query"`
	RewrittenQuery      string                `json:"rewritten_query,omitempty"`
	Strategy            string                `json:"optimization_strategy,omitempty"`
	RankingStrategy     string                `json:"ranking_strategy,omitempty"`
	Explanations        []ranking.Explanation `json:"explanations,omitempty"`
	Error               *domain.Failure       `json:"error,omitempty"`
}

func searchResponseFrom(resp *searchuc.Response) searchResponse {
	out := searchResponse{
		SessionID:           resp.SessionID,
		Results:             make([]resultItem, 0, len(resp.Results)),
		TotalFound:          resp.TotalFound,
		SearchTimeMS:        millis(resp.SearchTime),
		CacheHit:            resp.CacheHit,
		OptimizationApplied: resp.OptimizationApplied,
		OriginalQuery:       resp.OriginalQuery,
		RewrittenQuery:      resp.RewrittenQuery,
		Strategy:            resp.Strategy,
		RankingStrategy:     resp.RankingStrategy,
		Explanations:        resp.Explanations,
		Error:               resp.Error,
	}
	for _, c := range resp.Results {
		out.Results = append(out.Results, resultFromCandidate(c))
	}
	return out
}

type interactionRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Type       string `json:"type" validate:"required"`
}

type interactionDTO struct {
	DocumentID string           `json:"document_id"`
	Type       interaction.Type `json:"type"`
	At         time.Time        `json:"at"`
}

type sessionResponse struct {
	ID                  string           `json:"session_id"`
	OriginalQuery       string           `json:"original_query"`
	RewrittenQuery      string           `json:"rewritten_query,omitempty"`
	Strategy            string           `json:"optimization_strategy,omitempty"`
	CacheHit            bool             `json:"cache_hit"`
	OptimizationApplied bool             `json:"optimization_applied"`
	Failed              bool             `json:"failed"`
	ResponseTimeMS      float64          `json:"response_time_ms"`
	ResultCount         int              `json:"result_count"`
	CreatedAt           time.Time        `json:"created_at"`
	Interactions        []interactionDTO `json:"interactions"`
}

func sessionResponseFrom(s *session.Session) sessionResponse {
	out := sessionResponse{
		ID:                  s.ID,
		OriginalQuery:       s.OriginalQuery,
		RewrittenQuery:      s.RewrittenQuery,
		Strategy:            s.Strategy,
		CacheHit:            s.CacheHit,
		OptimizationApplied: s.OptimizationApplied,
		Failed:              s.Failed,
		ResponseTimeMS:      millis(s.ResponseTime),
		ResultCount:         s.ResultCount,
		CreatedAt:           s.CreatedAt,
		Interactions:        make([]interactionDTO, 0, len(s.Interactions)),
	}
	for _, ev := range s.Interactions {
		out.Interactions = append(out.Interactions, interactionDTO{DocumentID: ev.DocumentID, Type: ev.Type, At: ev.At})
	}
	return out
}

// evaluateRequest evaluates the given results, or runs the search for query
// and evaluates what it returns when Results is empty.
type evaluateRequest struct {
	Query     string             `json:"query" validate:"required"`
	Results   []evaluation.Doc   `json:"results" validate:"max=1000,dive"`
	Judgments map[string]float64 `json:"judgments"`
	Limit     int                `json:"limit" validate:"min=0"`
}

type evaluateBatchRequest struct {
	Cases []evaluation.Case `json:"cases" validate:"required,min=1,max=500,dive"`
}

type evaluateBatchResponse struct {
	Evaluation evaluation.SetResult `json:"evaluation"`
	Report     evaluation.Report    `json:"report"`
}

type judgmentsRequest struct {
	Judgments []evaluation.Judgment `json:"judgments" validate:"required,min=1,max=10000"`
}

type judgmentsResponse struct {
	Added         int `json:"added"`
	JudgedQueries int `json:"judged_queries"`
}

type warmRequest struct {
	Queries []string `json:"queries" validate:"max=100,dive,required"`
}

func docsFromCandidates(cs []candidate.Candidate) []evaluation.Doc {
	docs := make([]evaluation.Doc, 0, len(cs))
	for _, c := range cs {
		year, _ := c.Year()
		docs = append(docs, evaluation.Doc{
			ID:       c.ID(),
			Title:    c.Title(),
			Content:  c.Overview(),
			Score:    c.FinalScore(),
			Genres:   c.Genres(),
			Year:     year,
			Metadata: c.RawMetadata(),
		})
	}
	return docs
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
