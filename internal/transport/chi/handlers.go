package chi

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kailas-cloud/cinerank/internal/usecase/evaluation"
	searchuc "github.com/kailas-cloud/cinerank/internal/usecase/search"
	"github.com/kailas-cloud/cinerank/internal/validation"
)

// decode reads a JSON body into v and validates it. On failure the error
// response is already written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 || !allowEmpty {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return false
		}
	}
	if errs := validation.Struct(v); errs != nil {
		writeValidation(w, errs)
		return false
	}
	return true
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	resp := s.search.Search(r.Context(), req.toQuery())
	if resp.Error != nil {
		if status, code := failureStatus(resp.Error, len(resp.Results) > 0); status != http.StatusOK {
			writeJSON(w, status, errorResponse{
				Code:        code,
				Message:     resp.Error.Message,
				Suggestions: resp.Error.Suggestions,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, searchResponseFrom(&resp))
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.search.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(&sess))
}

// RecordInteraction handles POST /v1/sessions/{id}/interactions.
func (s *Server) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	res := s.search.RecordInteraction(r.Context(), chi.URLParam(r, "id"), req.DocumentID, req.Type)
	if res.Error != nil {
		status, _ := failureStatus(res.Error, false)
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Evaluate handles POST /v1/evaluate.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	docs := req.Results
	if len(docs) == 0 {
		resp := s.search.Search(r.Context(), searchuc.Query{Text: req.Query, Limit: req.Limit})
		if resp.Error != nil && len(resp.Results) == 0 {
			status, code := failureStatus(resp.Error, false)
			writeJSON(w, status, errorResponse{Code: code, Message: resp.Error.Message, Suggestions: resp.Error.Suggestions})
			return
		}
		docs = docsFromCandidates(resp.Results)
	}

	res, err := s.evaluator.Evaluate(req.Query, docs, req.Judgments)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EvaluateBatch handles POST /v1/evaluate/batch.
func (s *Server) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req evaluateBatchRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	set, err := s.evaluator.EvaluateSet(req.Cases)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateBatchResponse{Evaluation: set, Report: evaluation.BuildReport(set)})
}

// AddJudgments handles POST /v1/judgments.
func (s *Server) AddJudgments(w http.ResponseWriter, r *http.Request) {
	var req judgmentsRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	if err := s.evaluator.AddJudgments(req.Judgments); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, judgmentsResponse{
		Added:         len(req.Judgments),
		JudgedQueries: s.evaluator.JudgedQueries(),
	})
}

// ClearJudgments handles DELETE /v1/judgments.
func (s *Server) ClearJudgments(w http.ResponseWriter, _ *http.Request) {
	s.evaluator.ClearJudgments()
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.search.Stats())
}

// Tuning handles GET /v1/tuning.
func (s *Server) Tuning(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.search.Recommendations())
}

// WarmCache handles POST /v1/cache/warm. An empty body warms the configured queries.
func (s *Server) WarmCache(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	writeJSON(w, http.StatusOK, s.search.WarmCache(r.Context(), req.Queries))
}

// ClearCache handles DELETE /v1/cache.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.search.ClearCaches(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
