package chi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/validation"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest    = "bad_request"
	codeValidation    = "validation_failed"
	codeUnauthorized  = "unauthorized"
	codeNotFound      = "not_found"
	codeRateLimited   = "rate_limited"
	codeQuotaExceeded = "embedding_quota_exceeded"
	codeUpstream      = "upstream_error"
	codeTimeout       = "upstream_timeout"
	codeInternal      = "internal_error"
	codeInvalidConfig = "invalid_config"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	inputErrorHandler,
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
	sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, codeUpstream),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeUpstream),
	sentinelHandler(domain.ErrInvalidConfig, http.StatusInternalServerError, codeInvalidConfig),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func inputErrorHandler(w http.ResponseWriter, err error) bool {
	var ie *domain.InputError
	if !errors.As(err, &ie) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:        codeValidation,
		Message:     ie.Error(),
		Field:       ie.Field,
		Suggestions: ie.Suggestions,
	})
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range errorHandlers {
		if h(w, err) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// writeValidation reports struct validation failures of a request body.
func writeValidation(w http.ResponseWriter, errs []validation.FieldError) {
	first := errs[0]
	resp := errorResponse{Code: codeValidation, Message: first.Error(), Field: first.Field}
	for _, fe := range errs[1:] {
		resp.Suggestions = append(resp.Suggestions, "also: "+fe.Error())
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// failureStatus maps a result-level failure to an HTTP status. A failure
// that still carries results (served by the fallback path) is a 200.
func failureStatus(f *domain.Failure, hasResults bool) (int, string) {
	switch f.Kind {
	case domain.FailureInput:
		return http.StatusBadRequest, codeValidation
	case domain.FailureNotFound:
		return http.StatusNotFound, codeNotFound
	}
	if hasResults {
		return http.StatusOK, ""
	}
	switch f.Kind {
	case domain.FailureUpstream:
		return http.StatusBadGateway, codeUpstream
	case domain.FailureTimeout:
		return http.StatusGatewayTimeout, codeTimeout
	case domain.FailureConfig:
		return http.StatusInternalServerError, codeInvalidConfig
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
