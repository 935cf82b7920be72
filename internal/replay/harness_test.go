package replay

import (
	"errors"
	"testing"
	"time"

	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region helpers
func series(coherence ...float64) []memory.Snapshot {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	snaps := make([]memory.Snapshot, len(coherence))
	for i, c := range coherence {
		snaps[i] = memory.Snapshot{Timestamp: t0.Add(time.Duration(i) * time.Second), Coherence: c, Entropy: 0.5}
	}
	return snaps
}

// #endregion helpers

// #region replay-tests
func TestReplay_Empty(t *testing.T) {
	steps, summary, err := Replay(4, nil, feedback.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 0 || summary.Steps != 0 || summary.Evictions != 0 {
		t.Errorf("expected empty replay, got %d steps, %+v", len(steps), summary)
	}
}

func TestReplay_ZeroCapacity(t *testing.T) {
	_, _, err := Replay(0, series(0.1), feedback.Config{})
	if !errors.Is(err, memory.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestReplay_InvalidMapping(t *testing.T) {
	cfg := feedback.DefaultConfig()
	cfg.Phase.Gain = 0
	_, _, err := Replay(4, series(0.1), cfg)
	if !errors.Is(err, memory.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestReplay_InvalidSnapshot(t *testing.T) {
	_, _, err := Replay(4, series(0.1, 1.7), feedback.Config{})
	if !errors.Is(err, memory.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestReplay_Deterministic(t *testing.T) {
	snaps := series(0.1, 0.9, 0.3, 0.7, 0.2)
	a, sa, err := Replay(3, snaps, feedback.Config{})
	if err != nil {
		t.Fatal(err)
	}
	b, sb, err := Replay(3, snaps, feedback.Config{})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Analytics != b[i].Analytics || a[i].Parameters != b[i].Parameters {
			t.Fatalf("step %d differs between runs", i)
		}
	}
	if sa != sb {
		t.Errorf("summaries differ: %+v vs %+v", sa, sb)
	}
}

func TestReplay_MatchesDirectDerivation(t *testing.T) {
	snaps := series(0.2, 0.8)
	steps, _, err := Replay(8, snaps, feedback.Config{})
	if err != nil {
		t.Fatal(err)
	}
	last := steps[len(steps)-1]
	if want := feedback.DeriveParameters(last.Analytics); last.Parameters != want {
		t.Errorf("expected %+v, got %+v", want, last.Parameters)
	}
	if last.Analytics.Span != time.Second {
		t.Errorf("expected span from snapshot timestamps, got %v", last.Analytics.Span)
	}
}

func TestSummarize(t *testing.T) {
	steps, summary, err := Replay(2, series(0.1, 0.5, 0.2, 0.9), feedback.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Evictions != 2 {
		t.Errorf("expected 2 evictions, got %d", summary.Evictions)
	}
	if summary.Final != steps[3].Analytics {
		t.Errorf("expected final analytics from the last step")
	}
	if summary.PhaseRange[0] > summary.PhaseRange[1] {
		t.Errorf("phase range inverted: %v", summary.PhaseRange)
	}
	for _, st := range steps {
		if st.Parameters.PhaseRate < summary.PhaseRange[0] || st.Parameters.PhaseRate > summary.PhaseRange[1] {
			t.Errorf("step %d phase %v outside summary range %v", st.Index, st.Parameters.PhaseRate, summary.PhaseRange)
		}
	}
}

// #endregion replay-tests
