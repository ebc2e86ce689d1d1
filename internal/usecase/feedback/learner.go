// Package feedback turns user interactions into per-document relevance
// signals consumed by the ranker.
package feedback

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
)

const (
	maxSignal           = 1.0
	defaultHistoryLimit = 100
	// signals decayed below this are forgotten
	minSignal = 1e-3
)

// DecayFunc returns the decayed value of a signal after elapsed time.
type DecayFunc func(signal float64, elapsed time.Duration) float64

// ExponentialDecay halves a signal every halfLife.
func ExponentialDecay(halfLife time.Duration) DecayFunc {
	return func(signal float64, elapsed time.Duration) float64 {
		if halfLife <= 0 || elapsed <= 0 {
			return signal
		}
		return signal * math.Pow(0.5, float64(elapsed)/float64(halfLife))
	}
}

// Config controls the learner.
type Config struct {
	// HistoryLimit bounds the events kept per document; the oldest are dropped.
	HistoryLimit int
	// Decay is nil unless signals should fade over time.
	Decay DecayFunc
}

// Stats summarizes recorded feedback.
type Stats struct {
	TotalInteractions int                      `json:"total_interactions"`
	Documents         int                      `json:"documents"`
	ByType            map[interaction.Type]int `json:"by_type"`
	AvgSignal         float64                  `json:"avg_signal"`
	DecayEnabled      bool                     `json:"decay_enabled"`
}

type signal struct {
	value     float64
	decayedAt time.Time
}

// Learner accumulates capped relevance signals. Without a decay function a
// signal only grows until Reset or Clear. Safe for concurrent use.
type Learner struct {
	cfg    Config
	now    func() time.Time
	total  *prometheus.CounterVec
	logger *zap.Logger

	mu      sync.RWMutex
	signals map[string]*signal
	history map[string][]interaction.Event
	count   int
	byType  map[interaction.Type]int
}

// New creates a Learner. now defaults to time.Now; total may be nil.
func New(cfg Config, now func() time.Time, total *prometheus.CounterVec, logger *zap.Logger) *Learner {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Learner{
		cfg:     cfg,
		now:     now,
		total:   total,
		logger:  logger,
		signals: make(map[string]*signal),
		history: make(map[string][]interaction.Event),
		byType:  make(map[interaction.Type]int),
	}
}

// Record appends an interaction and returns the document's updated signal.
func (l *Learner) Record(query, documentID string, t interaction.Type) float64 {
	return l.RecordEvent(interaction.Event{Query: query, DocumentID: documentID, Type: t})
}

// RecordEvent is Record for a complete event. A zero At is stamped with now.
func (l *Learner) RecordEvent(ev interaction.Event) float64 {
	if ev.At.IsZero() {
		ev.At = l.now()
	}

	l.mu.Lock()
	s, ok := l.signals[ev.DocumentID]
	if !ok {
		s = &signal{decayedAt: ev.At}
		l.signals[ev.DocumentID] = s
	}
	s.value = min(s.value+ev.Type.Weight(), maxSignal)
	value := s.value

	h := append(l.history[ev.DocumentID], ev)
	if over := len(h) - l.cfg.HistoryLimit; over > 0 {
		h = slices.Delete(h, 0, over)
	}
	l.history[ev.DocumentID] = h
	l.count++
	l.byType[ev.Type]++
	l.mu.Unlock()

	if l.total != nil {
		l.total.WithLabelValues(string(ev.Type)).Inc()
	}
	return value
}

// Signal returns the accumulated signal of documentID, 0 when unknown.
func (l *Learner) Signal(documentID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.signals[documentID]; ok {
		return s.value
	}
	return 0
}

// Signals returns a snapshot of the signals of ids that have one.
func (l *Learner) Signals(ids []string) map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if s, ok := l.signals[id]; ok {
			out[id] = s.value
		}
	}
	return out
}

// History returns a copy of the recorded events of documentID, oldest first.
func (l *Learner) History(documentID string) []interaction.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.history[documentID])
}

// Reset forgets the signal and history of documentID.
func (l *Learner) Reset(documentID string) {
	l.mu.Lock()
	delete(l.signals, documentID)
	delete(l.history, documentID)
	l.mu.Unlock()
}

// Clear forgets everything.
func (l *Learner) Clear() {
	l.mu.Lock()
	l.signals = make(map[string]*signal)
	l.history = make(map[string][]interaction.Event)
	l.count = 0
	l.byType = make(map[interaction.Type]int)
	l.mu.Unlock()
}

// Stats returns a snapshot of recorded feedback.
func (l *Learner) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stats{
		TotalInteractions: l.count,
		Documents:         len(l.signals),
		ByType:            maps.Clone(l.byType),
		DecayEnabled:      l.cfg.Decay != nil,
	}
	if len(l.signals) > 0 {
		var sum float64
		for _, s := range l.signals {
			sum += s.value
		}
		st.AvgSignal = sum / float64(len(l.signals))
	}
	return st
}

// Decay applies the configured decay function as of now and returns how
// many signals were forgotten. It is a no-op without a decay function.
func (l *Learner) Decay(now time.Time) int {
	if l.cfg.Decay == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	forgotten := 0
	for id, s := range l.signals {
		s.value = l.cfg.Decay(s.value, now.Sub(s.decayedAt))
		s.decayedAt = now
		if s.value < minSignal {
			delete(l.signals, id)
			forgotten++
		}
	}
	return forgotten
}

// RunDecay applies Decay every interval until ctx is done. It returns
// immediately when no decay function is configured.
func (l *Learner) RunDecay(ctx context.Context, interval time.Duration) {
	if l.cfg.Decay == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Decay(l.now()); n > 0 {
				l.logger.Debug("feedback signals decayed out", zap.Int("count", n))
			}
		}
	}
}
