package feedback

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain/interaction"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func newTestLearner(cfg Config) *Learner {
	return New(cfg, nil, nil, zap.NewNop())
}

func TestRecord_Weights(t *testing.T) {
	l := newTestLearner(Config{})

	l.Record("q", "1", interaction.Click)
	l.Record("q", "1", interaction.Like)
	if got := l.Signal("1"); !approx(got, 0.6) {
		t.Errorf("signal = %v, want 0.6", got)
	}
	if got := l.Record("q", "2", interaction.Type("wink")); !approx(got, interaction.UnknownWeight) {
		t.Errorf("unknown type signal = %v", got)
	}
	if l.Signal("missing") != 0 {
		t.Error("unknown document must have signal 0")
	}
}

func TestRecord_CappedAndMonotonic(t *testing.T) {
	l := newTestLearner(Config{})

	prev := 0.0
	for range 10 {
		got := l.Record("q", "1", interaction.Like)
		if got < prev {
			t.Fatalf("signal decreased from %v to %v", prev, got)
		}
		prev = got
	}
	if prev != maxSignal {
		t.Errorf("signal = %v, want capped at 1", prev)
	}
}

func TestRecord_HistoryBounded(t *testing.T) {
	l := newTestLearner(Config{HistoryLimit: 3})
	for _, q := range []string{"a", "b", "c", "d", "e"} {
		l.Record(q, "1", interaction.Click)
	}

	h := l.History("1")
	if len(h) != 3 || h[0].Query != "c" || h[2].Query != "e" {
		t.Errorf("history = %+v", h)
	}
	if l.Stats().TotalInteractions != 5 {
		t.Errorf("total = %d, every interaction counts", l.Stats().TotalInteractions)
	}
}

func TestSignals_Snapshot(t *testing.T) {
	l := newTestLearner(Config{})
	l.Record("q", "1", interaction.View)

	snap := l.Signals([]string{"1", "2"})
	if len(snap) != 1 || !approx(snap["1"], 0.2) {
		t.Fatalf("snapshot = %v", snap)
	}
	l.Record("q", "1", interaction.View)
	if !approx(snap["1"], 0.2) {
		t.Error("snapshot must not follow later writes")
	}
}

func TestResetAndClear(t *testing.T) {
	l := newTestLearner(Config{})
	l.Record("q", "1", interaction.Share)
	l.Record("q", "2", interaction.Bookmark)

	l.Reset("1")
	if l.Signal("1") != 0 || len(l.History("1")) != 0 {
		t.Error("Reset must forget the document")
	}
	if !approx(l.Signal("2"), 0.4) {
		t.Error("Reset must not touch other documents")
	}

	l.Clear()
	if s := l.Stats(); s.Documents != 0 || s.TotalInteractions != 0 {
		t.Errorf("stats after clear = %+v", s)
	}
}

func TestStats(t *testing.T) {
	l := newTestLearner(Config{})
	l.Record("q", "1", interaction.Click)
	l.Record("q", "2", interaction.Like)
	l.Record("q", "2", interaction.Click)

	s := l.Stats()
	if s.TotalInteractions != 3 || s.Documents != 2 || s.ByType[interaction.Click] != 2 {
		t.Errorf("stats = %+v", s)
	}
	if !approx(s.AvgSignal, (0.1+0.6)/2) {
		t.Errorf("avg = %v", s.AvgSignal)
	}
	if s.DecayEnabled {
		t.Error("decay must be off by default")
	}
}

func TestDecay_NoopWithoutFunc(t *testing.T) {
	l := newTestLearner(Config{})
	l.Record("q", "1", interaction.Like)

	if n := l.Decay(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Errorf("forgotten = %d", n)
	}
	if !approx(l.Signal("1"), 0.5) {
		t.Errorf("signal = %v, must not decay", l.Signal("1"))
	}
}

func TestDecay_Exponential(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l := New(Config{Decay: ExponentialDecay(time.Hour)}, func() time.Time { return now }, nil, zap.NewNop())

	l.Record("q", "1", interaction.Like)
	l.Record("q", "2", interaction.Click)

	l.Decay(start.Add(time.Hour))
	if !approx(l.Signal("1"), 0.25) {
		t.Errorf("signal = %v, want halved to 0.25", l.Signal("1"))
	}

	if n := l.Decay(start.Add(8 * time.Hour)); n != 1 {
		t.Errorf("forgotten = %d, want 1", n)
	}
	if l.Signal("2") != 0 {
		t.Error("decayed out signal must read as 0")
	}
}

func TestExponentialDecay(t *testing.T) {
	d := ExponentialDecay(time.Hour)
	if !approx(d(1, 2*time.Hour), 0.25) {
		t.Errorf("two half-lives = %v", d(1, 2*time.Hour))
	}
	if d(0.7, 0) != 0.7 || ExponentialDecay(0)(0.7, time.Hour) != 0.7 {
		t.Error("zero elapsed or half-life must not change the signal")
	}
}

func TestRunDecay_Stops(t *testing.T) {
	l := newTestLearner(Config{Decay: ExponentialDecay(time.Hour)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.RunDecay(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunDecay did not stop")
	}
}
