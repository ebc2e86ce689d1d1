package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; searches may be served by the fallback path.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable and nothing can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const checkTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	breaker   BreakerState
}

// New creates a Service. embedding and breaker can be nil.
func New(db DBPinger, embedding EmbeddingChecker, breaker BreakerState) *Service {
	return &Service{db: db, embedding: embedding, breaker: breaker}
}

// Check runs the component checks concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		set("database", s.db.Ping(cctx))
		return nil
	})
	if s.embedding != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			set("embedding", s.embedding.HealthCheck(cctx))
			return nil
		})
	}
	_ = g.Wait()

	if s.breaker != nil {
		if s.breaker.State() == "open" {
			checks["ann_breaker"] = CheckError
		} else {
			checks["ann_breaker"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
