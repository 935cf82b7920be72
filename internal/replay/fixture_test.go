package replay

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// runFixture replays a fixture file and compares every step against its expectations.
func runFixture(t *testing.T, name string) {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	cfg := f.FeedbackConfig()
	steps, summary, err := Replay(f.Capacity, f.ToSnapshots(), cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(steps) != len(f.Expected) {
		t.Fatalf("expected %d steps, got %d", len(f.Expected), len(steps))
	}

	for i, want := range f.Expected {
		got := steps[i]
		if got.Analytics.Samples != want.Samples {
			t.Errorf("step %d: expected samples=%d, got %d", i, want.Samples, got.Analytics.Samples)
		}
		if got.Evicted != want.Evicted {
			t.Errorf("step %d: expected evicted=%v, got %v", i, want.Evicted, got.Evicted)
		}
		if math.Abs(got.Analytics.CoherenceTrend-want.CoherenceTrend) > 1e-9 {
			t.Errorf("step %d: expected coherence trend %v, got %v", i, want.CoherenceTrend, got.Analytics.CoherenceTrend)
		}
		if math.Abs(got.Analytics.EntropyTrend-want.EntropyTrend) > 1e-9 {
			t.Errorf("step %d: expected entropy trend %v, got %v", i, want.EntropyTrend, got.Analytics.EntropyTrend)
		}
		if d := Direction(got.Parameters.DecayRate, cfg.Decay); d != want.Decay {
			t.Errorf("step %d: expected decay %s, got %s (%v)", i, want.Decay, d, got.Parameters.DecayRate)
		}
		if d := Direction(got.Parameters.PhaseRate, cfg.Phase); d != want.Phase {
			t.Errorf("step %d: expected phase %s, got %s (%v)", i, want.Phase, d, got.Parameters.PhaseRate)
		}
	}

	if summary.Steps != len(f.Expected) {
		t.Errorf("summary: expected %d steps, got %d", len(f.Expected), summary.Steps)
	}
}

func TestFixture_RisingCoherence(t *testing.T) {
	runFixture(t, "rising_coherence.json")
}

func TestFixture_SteadyState(t *testing.T) {
	runFixture(t, "steady_state.json")
}

func TestLoadFixture_InvalidPath(t *testing.T) {
	_, err := LoadFixture("/nonexistent/path.json")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestLoadFixture_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestFixture_DefaultFeedback(t *testing.T) {
	f := &Fixture{}
	cfg := f.FeedbackConfig()
	if cfg.Decay.Max == 0 || cfg.Phase.Max == 0 {
		t.Fatalf("expected default mapping, got %+v", cfg)
	}
}

// #endregion fixture-tests
