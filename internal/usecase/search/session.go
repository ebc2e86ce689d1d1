package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
	"github.com/kailas-cloud/cinerank/internal/domain/session"
)

// sessionStore keeps the most recent sessions. The LRU is safe for
// concurrent use; mu serializes mutation of the sessions it holds.
type sessionStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *session.Session]
}

func newSessionStore(capacity int) (*sessionStore, error) {
	c, err := lru.New[string, *session.Session](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &sessionStore{cache: c}, nil
}

func (st *sessionStore) add(s *session.Session) string {
	s.ID = uuid.NewString()
	st.cache.Add(s.ID, s)
	return s.ID
}

func (st *sessionStore) get(id string) (session.Session, bool) {
	s, ok := st.cache.Peek(id)
	if !ok {
		return session.Session{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.Clone(), true
}

// appendEvent adds ev to the session and returns the session's original query.
func (st *sessionStore) appendEvent(id string, ev interaction.Event) (string, bool) {
	s, ok := st.cache.Get(id)
	if !ok {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s.Interactions = append(s.Interactions, ev)
	return s.OriginalQuery, true
}

// snapshot returns copies of all sessions, oldest first.
func (st *sessionStore) snapshot() []session.Session {
	values := st.cache.Values()
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]session.Session, len(values))
	for i, s := range values {
		out[i] = s.Clone()
	}
	return out
}

func (st *sessionStore) purge() { st.cache.Purge() }

func (s *Service) sessionOf(resp *Response) *session.Session {
	return &session.Session{
		OriginalQuery:       resp.OriginalQuery,
		RewrittenQuery:      resp.RewrittenQuery,
		Strategy:            resp.Strategy,
		CacheHit:            resp.CacheHit,
		ResponseTime:        resp.SearchTime,
		ResultCount:         len(resp.Results),
		OptimizationApplied: resp.OptimizationApplied,
		Failed:              resp.Error != nil,
		CreatedAt:           s.now(),
	}
}

// Session returns a copy of the session id.
func (s *Service) Session(id string) (session.Session, error) {
	sess, ok := s.sessions.get(id)
	if !ok {
		return session.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// InteractionResult is the outcome of RecordInteraction.
type InteractionResult struct {
	SessionID  string           `json:"session_id"`
	DocumentID string           `json:"document_id"`
	Type       interaction.Type `json:"type,omitempty"`
	Signal     float64          `json:"signal"`
	Error      *domain.Failure  `json:"error,omitempty"`
}

// RecordInteraction attaches a user interaction to a session and feeds it to
// the learner. Unknown sessions and types are reported in Error.
func (s *Service) RecordInteraction(_ context.Context, sessionID, documentID, kind string) InteractionResult {
	res := InteractionResult{SessionID: sessionID, DocumentID: documentID}

	t, err := interaction.ParseType(kind)
	if err != nil {
		res.Error = domain.FailureFrom(err)
		return res
	}
	res.Type = t
	if strings.TrimSpace(documentID) == "" {
		res.Error = domain.FailureFrom(domain.NewInputError("document_id", "must not be empty"))
		return res
	}

	ev := interaction.Event{SessionID: sessionID, DocumentID: documentID, Type: t, At: s.now()}
	query, ok := s.sessions.appendEvent(sessionID, ev)
	if !ok {
		res.Error = domain.FailureFrom(fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound))
		return res
	}
	ev.Query = query

	res.Signal = s.deps.Learner.RecordEvent(ev)
	s.logger.Debug("Interaction recorded",
		zap.String("session_id", sessionID),
		zap.String("document_id", documentID),
		zap.String("type", string(t)),
		zap.Float64("signal", res.Signal),
	)
	return res
}
