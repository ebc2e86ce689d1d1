package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options configures the two-level tier.
type Options struct {
	L1TTL         time.Duration
	L2TTL         time.Duration
	L2Timeout     time.Duration
	SweepInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.L1TTL <= 0 {
		o.L1TTL = 30 * time.Minute
	}
	if o.L2TTL <= 0 {
		o.L2TTL = 24 * time.Hour
	}
	if o.L2Timeout <= 0 {
		o.L2Timeout = 50 * time.Millisecond
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
}

// Stats is a snapshot of tier-level counters.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	L1Hits    int64   `json:"l1_hits"`
	L2Hits    int64   `json:"l2_hits"`
	L2Errors  int64   `json:"l2_errors"`
	Evictions int64   `json:"evictions"`
	Rejected  int64   `json:"rejected"`
	Count     int     `json:"count"`
	Size      int64   `json:"size_bytes"`
	L2Enabled bool    `json:"l2_enabled"`
}

// Tier is the two-level cache. Reads go L1 then L2 and promote L2 hits into
// L1. Writes go through to both tiers. L2 calls run under their own timeout
// and never hold the L1 lock; an L2 error or timeout is a miss.
type Tier struct {
	l1       *LRU
	l2       Remote
	opts     Options
	requests *prometheus.CounterVec
	logger   *zap.Logger

	l1Hits, l2Hits, misses, l2Errors atomic.Int64
}

// NewTier assembles the tier. l2 may be nil when no network tier is configured.
// requests is a counter vec labelled (tier, result); it may be nil.
func NewTier(l1 *LRU, l2 Remote, opts Options, requests *prometheus.CounterVec, logger *zap.Logger) *Tier {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tier{l1: l1, l2: l2, opts: opts, requests: requests, logger: logger}
}

// Get looks key up in L1, then L2.
func (t *Tier) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.l1.Get(key); ok {
		t.l1Hits.Add(1)
		t.observe("l1", "hit")
		return v, true
	}
	t.observe("l1", "miss")

	v, ok := t.l2Get(ctx, key)
	if !ok {
		t.misses.Add(1)
		return nil, false
	}

	t.l2Hits.Add(1)
	// promotion may be rejected by the byte budget; the value is still served
	t.l1.Put(key, v, t.opts.L1TTL)
	return v, true
}

// Put writes value to both tiers. ttl <= 0 uses the tier defaults; a positive
// ttl replaces the L1 TTL and L2 keeps at least its own TTL. Returns false and
// writes nothing when the value exceeds the L1 byte budget.
func (t *Tier) Put(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	l1TTL := t.opts.L1TTL
	l2TTL := t.opts.L2TTL
	if ttl > 0 {
		l1TTL = ttl
		l2TTL = max(ttl, t.opts.L2TTL)
	}

	if !t.l1.Put(key, value, l1TTL) {
		t.logger.Debug("Cache entry rejected by byte budget",
			zap.String("key", key), zap.Int("size", len(value)))
		return false
	}

	if t.l2 != nil {
		l2ctx, cancel := context.WithTimeout(ctx, t.opts.L2Timeout)
		defer cancel()
		if err := t.l2.Set(l2ctx, key, value, l2TTL); err != nil {
			t.l2Errors.Add(1)
			t.observe("l2", "error")
			t.logger.Warn("Failed to write L2 cache", zap.String("key", key), zap.Error(err))
		}
	}
	return true
}

// Delete removes key from both tiers. Returns true if L1 held it.
func (t *Tier) Delete(ctx context.Context, key string) bool {
	found := t.l1.Delete(key)
	if t.l2 != nil {
		l2ctx, cancel := context.WithTimeout(ctx, t.opts.L2Timeout)
		defer cancel()
		if err := t.l2.Delete(l2ctx, key); err != nil {
			t.l2Errors.Add(1)
			t.logger.Warn("Failed to delete L2 cache key", zap.String("key", key), zap.Error(err))
		}
	}
	return found
}

// Clear empties both tiers. L2 clearing is not bounded by the per-call
// timeout since it may scan many keys.
func (t *Tier) Clear(ctx context.Context) error {
	t.l1.Clear()
	if t.l2 == nil {
		return nil
	}
	if err := t.l2.Clear(ctx); err != nil {
		t.l2Errors.Add(1)
		return err
	}
	return nil
}

// Stats returns a snapshot of tier counters.
func (t *Tier) Stats() Stats {
	l1 := t.l1.Stats()
	hits := t.l1Hits.Load() + t.l2Hits.Load()
	misses := t.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	_, nop := t.l2.(Nop)
	return Stats{
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate,
		L1Hits:    t.l1Hits.Load(),
		L2Hits:    t.l2Hits.Load(),
		L2Errors:  t.l2Errors.Load(),
		Evictions: l1.Evictions,
		Rejected:  l1.Rejections,
		Count:     l1.Count,
		Size:      l1.SizeBytes,
		L2Enabled: t.l2 != nil && !nop,
	}
}

// RunSweeper removes expired L1 entries every sweep interval until ctx is done.
func (t *Tier) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.l1.Sweep(); n > 0 {
				t.logger.Debug("Swept expired cache entries", zap.Int("removed", n))
			}
		}
	}
}

func (t *Tier) l2Get(ctx context.Context, key string) ([]byte, bool) {
	if t.l2 == nil {
		return nil, false
	}

	l2ctx, cancel := context.WithTimeout(ctx, t.opts.L2Timeout)
	defer cancel()

	v, err := t.l2.Get(l2ctx, key)
	switch {
	case err == nil:
		t.observe("l2", "hit")
		return v, true
	case errors.Is(err, ErrMiss):
		t.observe("l2", "miss")
	default:
		t.l2Errors.Add(1)
		t.observe("l2", "error")
		t.logger.Warn("L2 cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func (t *Tier) observe(tier, result string) {
	if t.requests != nil {
		t.requests.WithLabelValues(tier, result).Inc()
	}
}
