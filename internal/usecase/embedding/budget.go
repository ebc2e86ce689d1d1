package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists budget counters. IncrBy may be called repeatedly.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, tokens int64) error
	Get(ctx context.Context, key string) (int64, error)
}

const persistTimeout = 2 * time.Second

// window is one budget period (a UTC day or month).
type window struct {
	name     string
	limit    int64
	used     int64
	start    time.Time
	truncate func(time.Time) time.Time
	layout   string
}

func (w *window) roll(now time.Time) {
	if start := w.truncate(now); start.After(w.start) {
		w.used = 0
		w.start = start
	}
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used >= w.limit }

// remaining returns tokens left, -1 when unlimited.
func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

func (w *window) key(provider string, t time.Time) string {
	return domain.KeyPrefix + "budget:" + provider + ":" + w.name + ":" + t.UTC().Format(w.layout)
}

// BudgetSnapshot is a point-in-time view of the budget.
type BudgetSnapshot struct {
	Provider         string       `json:"provider"`
	Action           BudgetAction `json:"action"`
	DailyUsed        int64        `json:"daily_used"`
	DailyLimit       int64        `json:"daily_limit"`
	DailyRemaining   int64        `json:"daily_remaining"`
	MonthlyUsed      int64        `json:"monthly_used"`
	MonthlyLimit     int64        `json:"monthly_limit"`
	MonthlyRemaining int64        `json:"monthly_remaining"`
}

// BudgetTracker is an in-memory token budget with optional persistence.
// Check never leaves the process; Record updates memory first and then
// writes behind to the store.
type BudgetTracker struct {
	provider string
	action   BudgetAction
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	daily   window
	monthly window
	store   BudgetStore
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, now func() time.Time, logger *zap.Logger,
) *BudgetTracker {
	if now == nil {
		now = time.Now
	}
	t := now().UTC()
	return &BudgetTracker{
		provider: provider,
		action:   action,
		now:      now,
		logger:   logger,
		daily: window{
			name: "daily", limit: dailyLimit, truncate: truncateToDay, layout: "2006-01-02",
			start: truncateToDay(t),
		},
		monthly: window{
			name: "monthly", limit: monthlyLimit, truncate: truncateToMonth, layout: "2006-01",
			start: truncateToMonth(t),
		},
	}
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, w := range []*window{&b.daily, &b.monthly} {
		used, err := store.Get(ctx, w.key(b.provider, now))
		if err != nil {
			b.logger.Warn("Failed to load budget from store", zap.String("window", w.name), zap.Error(err))
			continue
		}
		w.used = used
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

// Check reports whether a new request fits the budget. With the warn action
// an exceeded budget is only logged.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	if !b.daily.exceeded() && !b.monthly.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("daily_limit", b.daily.limit),
		zap.Int64("monthly_used", b.monthly.used),
		zap.Int64("monthly_limit", b.monthly.limit),
	)
	return nil
}

// Record registers consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.roll()
	b.daily.used += tokens
	b.monthly.used += tokens
	store := b.store
	now := b.now()
	keys := []string{b.daily.key(b.provider, now), b.monthly.key(b.provider, now)}
	b.mu.Unlock()

	if store == nil {
		return
	}

	// write-behind, independent of the caller's context
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.daily.remaining()
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.monthly.remaining()
}

// Snapshot returns the current budget state.
func (b *BudgetTracker) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return BudgetSnapshot{
		Provider:         b.provider,
		Action:           b.action,
		DailyUsed:        b.daily.used,
		DailyLimit:       b.daily.limit,
		DailyRemaining:   b.daily.remaining(),
		MonthlyUsed:      b.monthly.used,
		MonthlyLimit:     b.monthly.limit,
		MonthlyRemaining: b.monthly.remaining(),
	}
}

func (b *BudgetTracker) roll() {
	now := b.now().UTC()
	b.daily.roll(now)
	b.monthly.roll(now)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
