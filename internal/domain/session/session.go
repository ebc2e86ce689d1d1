// Package session defines the per-request search session record.
package session

import (
	"slices"
	"time"

	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
)

// Session records one search request and the interactions that followed it.
// Only the orchestrator mutates sessions; everyone else gets a Clone.
type Session struct {
	ID                  string
	OriginalQuery       string
	RewrittenQuery      string
	Strategy            string
	CacheHit            bool
	ResponseTime        time.Duration
	ResultCount         int
	OptimizationApplied bool
	Failed              bool
	CreatedAt           time.Time
	Interactions        []interaction.Event
}

// Clone returns a deep copy.
func (s *Session) Clone() Session {
	out := *s
	out.Interactions = slices.Clone(s.Interactions)
	return out
}
