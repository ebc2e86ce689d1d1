package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var day0 = time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)

func newTracker(daily, monthly int64, action BudgetAction, clk *fakeClock) *BudgetTracker {
	return NewBudgetTracker("openai", daily, monthly, action, clk.Now, zap.NewNop())
}

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	b := newTracker(100, 0, BudgetActionReject, newFakeClock(day0))
	b.Record(100)

	if err := b.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("Check = %v, want ErrEmbeddingQuotaExceeded", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	b := newTracker(100, 0, BudgetActionWarn, newFakeClock(day0))
	b.Record(500)

	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("warn action must not fail, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	b := newTracker(0, 50, BudgetActionReject, newFakeClock(day0))
	b.Record(60)

	if err := b.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("Check = %v, want ErrEmbeddingQuotaExceeded", err)
	}
}

func TestBudgetTracker_BelowLimitAllows(t *testing.T) {
	b := newTracker(100, 1000, BudgetActionReject, newFakeClock(day0))
	b.Record(99)

	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("Check = %v, want nil", err)
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	tests := []struct {
		name             string
		daily, monthly   int64
		record           int64
		wantDaily, wantM int64
	}{
		{"unlimited", 0, 0, 1000, -1, -1},
		{"partial", 100, 1000, 30, 70, 970},
		{"floored at zero", 100, 1000, 250, 0, 750},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTracker(tt.daily, tt.monthly, BudgetActionWarn, newFakeClock(day0))
			b.Record(tt.record)
			if got := b.RemainingDaily(); got != tt.wantDaily {
				t.Errorf("RemainingDaily = %d, want %d", got, tt.wantDaily)
			}
			if got := b.RemainingMonthly(); got != tt.wantM {
				t.Errorf("RemainingMonthly = %d, want %d", got, tt.wantM)
			}
		})
	}
}

func TestBudgetTracker_DailyRollover(t *testing.T) {
	clk := newFakeClock(day0)
	b := newTracker(100, 1000, BudgetActionReject, clk)
	b.Record(100)

	clk.Set(day0.Add(90 * time.Minute)) // 2026-04-01 00:30
	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("new day must reset the daily window, got %v", err)
	}
	snap := b.Snapshot()
	if snap.DailyUsed != 0 {
		t.Errorf("daily used = %d, want 0", snap.DailyUsed)
	}
	// the month also rolled over (March -> April)
	if snap.MonthlyUsed != 0 {
		t.Errorf("monthly used = %d, want 0", snap.MonthlyUsed)
	}
}

func TestBudgetTracker_MonthSurvivesDayRollover(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := newFakeClock(start)
	b := newTracker(100, 1000, BudgetActionReject, clk)
	b.Record(80)

	clk.Set(start.Add(24 * time.Hour))
	snap := b.Snapshot()
	if snap.DailyUsed != 0 || snap.MonthlyUsed != 80 {
		t.Errorf("snapshot = %+v, want daily 0 monthly 80", snap)
	}
}

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockBudgetStore()
	store.data["cinerank:budget:openai:daily:2026-03-31"] = 40
	store.data["cinerank:budget:openai:monthly:2026-03"] = 400

	b := newTracker(100, 1000, BudgetActionReject, newFakeClock(day0)).
		WithStore(context.Background(), store)

	snap := b.Snapshot()
	if snap.DailyUsed != 40 || snap.MonthlyUsed != 400 {
		t.Errorf("snapshot = %+v, want 40/400", snap)
	}
}

func TestBudgetTracker_Record_PersistsToStore(t *testing.T) {
	store := newMockBudgetStore()
	b := newTracker(0, 0, BudgetActionWarn, newFakeClock(day0)).
		WithStore(context.Background(), store)

	b.Record(25)
	b.Record(5)

	if got := store.data["cinerank:budget:openai:daily:2026-03-31"]; got != 30 {
		t.Errorf("daily key = %d, want 30", got)
	}
	if got := store.data["cinerank:budget:openai:monthly:2026-03"]; got != 30 {
		t.Errorf("monthly key = %d, want 30", got)
	}
}

func TestBudgetTracker_StoreErrorsAreNotFatal(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")

	b := newTracker(100, 0, BudgetActionReject, newFakeClock(day0)).
		WithStore(context.Background(), store)
	b.Record(10)

	if got := b.RemainingDaily(); got != 90 {
		t.Errorf("in-memory accounting must continue, remaining = %d", got)
	}
}
