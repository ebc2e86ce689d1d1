package rewrite

import (
	"strings"
	"testing"
	"time"
)

func TestOptimize_ExpandsShortGenreQuery(t *testing.T) {
	r := New(DefaultWeights(), nil)

	res := r.Optimize("scary movies")
	if res.Optimized != "scary movies horror" {
		t.Errorf("optimized = %q", res.Optimized)
	}
	if res.Strategy != StrategyExpansion || res.ImprovementScore != 0.3 {
		t.Errorf("strategy = %s score = %v", res.Strategy, res.ImprovementScore)
	}
	if !res.Applied() {
		t.Error("expected Applied")
	}
}

func TestOptimize_Skipped(t *testing.T) {
	r := New(DefaultWeights(), nil)

	for _, q := range []string{"ab", "  x  ", strings.Repeat("a", 201)} {
		res := r.Optimize(q)
		if res.Strategy != StrategySkipped {
			t.Errorf("Optimize(%q).Strategy = %s", q, res.Strategy)
		}
		if res.Applied() {
			t.Errorf("Optimize(%q) must not apply", q)
		}
	}
}

func TestOptimize_NoneKeepsOriginal(t *testing.T) {
	r := New(DefaultWeights(), nil)

	res := r.Optimize("  Heist With A Twist ")
	if res.Strategy != StrategyNone {
		t.Fatalf("strategy = %s", res.Strategy)
	}
	if res.Optimized != "Heist With A Twist" {
		t.Errorf("optimized = %q, want trimmed original", res.Optimized)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("candidates = %v", res.Candidates)
	}
}

func TestOptimize_IntentOutweighsExpansion(t *testing.T) {
	r := New(DefaultWeights(), nil)

	res := r.Optimize("find horror")
	if res.Strategy != StrategyIntent || res.Optimized != "horror" {
		t.Errorf("got %s %q", res.Strategy, res.Optimized)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("expected expansion and intent candidates, got %v", res.Candidates)
	}
}

func TestOptimize_TieGoesToDeclarationOrder(t *testing.T) {
	w := DefaultWeights()
	w.Intent = w.Expansion
	r := New(w, nil)

	res := r.Optimize("find horror")
	if res.Strategy != StrategyExpansion {
		t.Errorf("strategy = %s, want expansion on tie", res.Strategy)
	}
}

func TestOptimize_IntentOutputIsStable(t *testing.T) {
	r := New(DefaultWeights(), nil)

	first := r.Optimize("show me movies like the thing")
	if first.Strategy != StrategyIntent || first.Optimized != "similar to the thing" {
		t.Fatalf("got %s %q", first.Strategy, first.Optimized)
	}
	if second := r.Optimize(first.Optimized); second.Strategy != StrategyNone {
		t.Errorf("rewriting a normalized query applied %s: %q", second.Strategy, second.Optimized)
	}
}

// Only the intent rewrite is a fixed point. A short genre query left by
// intent normalization is still eligible for expansion on a second pass.
func TestOptimize_ShortIntentOutputExpandsAgain(t *testing.T) {
	r := New(DefaultWeights(), nil)

	first := r.Optimize("find horror")
	if first.Strategy != StrategyIntent || first.Optimized != "horror" {
		t.Fatalf("got %s %q", first.Strategy, first.Optimized)
	}
	if again := normalizeIntent(first.Optimized); again != first.Optimized {
		t.Errorf("normalizeIntent(%q) = %q, want unchanged", first.Optimized, again)
	}

	second := r.Optimize(first.Optimized)
	if second.Strategy != StrategyExpansion || second.Optimized != "horror scary" {
		t.Errorf("second pass = %s %q, want expansion %q", second.Strategy, second.Optimized, "horror scary")
	}
}

func TestOptimize_ProfileDriven(t *testing.T) {
	r := New(DefaultWeights(), nil)
	r.UpdateProfile("funny films", 800*time.Millisecond, 0.5, 3)

	res := r.Optimize("scary movies")
	if res.Strategy != StrategyProfile {
		t.Fatalf("strategy = %s, want profile", res.Strategy)
	}
	if res.Optimized != "scary movies horror" {
		t.Errorf("optimized = %q", res.Optimized)
	}
}

func TestOptimize_HealthyProfileIgnored(t *testing.T) {
	r := New(DefaultWeights(), nil)
	r.UpdateProfile("funny films", 50*time.Millisecond, 1, 10)

	if res := r.Optimize("scary movies"); res.Strategy != StrategyExpansion {
		t.Errorf("strategy = %s, want expansion", res.Strategy)
	}
}

func TestUpdateProfile_EMA(t *testing.T) {
	r := New(DefaultWeights(), nil)

	r.UpdateProfile("alien", 100*time.Millisecond, 1, 10)
	p, ok := r.Profile(PatternShort)
	if !ok {
		t.Fatal("profile not created")
	}
	if len(p.Hints) != 0 || p.Observations != 1 {
		t.Errorf("first observation: %+v", p)
	}

	r.UpdateProfile("heat", 200*time.Millisecond, 0, 0)
	p, _ = r.Profile(PatternShort)

	if d := p.AvgLatency - 130*time.Millisecond; d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("avg latency = %v, want 130ms", p.AvgLatency)
	}
	if d := p.SuccessRate - 0.7; d < -1e-9 || d > 1e-9 {
		t.Errorf("success rate = %v, want 0.7", p.SuccessRate)
	}
	if d := p.TypicalResultCount - 7; d < -1e-9 || d > 1e-9 {
		t.Errorf("typical result count = %v, want 7", p.TypicalResultCount)
	}
	if len(p.Hints) != 1 || p.Hints[0] != HintExpand {
		t.Errorf("hints = %v, want [expand]", p.Hints)
	}
	if p.Observations != 2 {
		t.Errorf("observations = %d", p.Observations)
	}
}

func TestUpdateProfile_HintsOnFirstObservation(t *testing.T) {
	r := New(DefaultWeights(), nil)
	r.UpdateProfile("alien", time.Second, 0.1, 0)

	p, _ := r.Profile(PatternShort)
	if len(p.Hints) != 2 || p.Hints[0] != HintSimplify || p.Hints[1] != HintExpand {
		t.Errorf("hints = %v", p.Hints)
	}
}

func TestProfiles_ReturnsCopies(t *testing.T) {
	r := New(DefaultWeights(), nil)
	r.UpdateProfile("alien", time.Second, 0.1, 0)

	ps := r.Profiles()
	ps[0].Hints[0] = "mutated"

	p, _ := r.Profile(PatternShort)
	if p.Hints[0] != HintSimplify {
		t.Error("Profiles must return copies")
	}
}

func TestStats(t *testing.T) {
	r := New(DefaultWeights(), nil)
	r.Optimize("scary movies")
	r.Optimize("find horror")
	r.Optimize("ab")
	r.Optimize("heist with a twist")
	r.UpdateProfile("alien", time.Millisecond, 1, 1)

	s := r.Stats()
	if s.TotalOptimizations != 4 {
		t.Errorf("total = %d", s.TotalOptimizations)
	}
	if s.ByStrategy[StrategyExpansion] != 1 || s.ByStrategy[StrategyIntent] != 1 ||
		s.ByStrategy[StrategySkipped] != 1 || s.ByStrategy[StrategyNone] != 1 {
		t.Errorf("by strategy = %v", s.ByStrategy)
	}
	if d := s.AvgImprovement - 0.175; d < -1e-9 || d > 1e-9 {
		t.Errorf("avg improvement = %v, want 0.175", s.AvgImprovement)
	}
	if s.ProfilesLearned != 1 {
		t.Errorf("profiles = %d", s.ProfilesLearned)
	}
}
