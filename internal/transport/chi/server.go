package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/metrics"
	healthuc "github.com/kailas-cloud/cinerank/internal/usecase/health"
)

const defaultMaxBodyBytes = 1 << 20

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	APIKeys            []string
	RateLimitPerMinute int // per client IP on /v1, 0 disables
	MaxBodyBytes       int64
}

// Server serves the cinerank HTTP API.
type Server struct {
	search    Searcher
	evaluator Evaluator
	health    HealthChecker
	logger    *zap.Logger
	maxBody   int64
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, evaluator Evaluator, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		search:    search,
		evaluator: evaluator,
		health:    health,
		logger:    logger,
		maxBody:   defaultMaxBodyBytes,
	}
}

// Routes builds the router with the full middleware chain.
func (s *Server) Routes(cfg RouterConfig) http.Handler {
	if cfg.MaxBodyBytes > 0 {
		s.maxBody = cfg.MaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.Limit(cfg.RateLimitPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
				}),
			))
		}

		r.Post("/search", s.Search)
		r.Get("/sessions/{id}", s.GetSession)
		r.Post("/sessions/{id}/interactions", s.RecordInteraction)

		r.Post("/evaluate", s.Evaluate)
		r.Post("/evaluate/batch", s.EvaluateBatch)
		r.Post("/judgments", s.AddJudgments)
		r.Delete("/judgments", s.ClearJudgments)

		r.Get("/stats", s.Stats)
		r.Get("/tuning", s.Tuning)
		r.Post("/cache/warm", s.WarmCache)
		r.Delete("/cache", s.ClearCache)
	})

	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}
