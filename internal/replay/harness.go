package replay

import (
	"fmt"
	"math"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region types
// Step captures the field after one snapshot was fed in.
type Step struct {
	Index      int
	Snapshot   memory.Snapshot
	Evicted    bool
	Analytics  analytics.Rolling
	Parameters feedback.Parameters
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Steps      int
	Evictions  int
	Final      analytics.Rolling
	FinalRates feedback.Parameters
	DecayRange [2]float64
	PhaseRange [2]float64
}

// #endregion types

// #region replay
// Replay feeds snaps in order into a fresh field of the given capacity and derives
// parameters after every step. It operates entirely in memory and is deterministic:
// timestamps come from the snapshots, not the clock.
func Replay(capacity int, snaps []memory.Snapshot, cfg feedback.Config) ([]Step, Summary, error) {
	field, err := memory.NewField(capacity)
	if err != nil {
		return nil, Summary{}, err
	}
	if cfg == (feedback.Config{}) {
		cfg = feedback.DefaultConfig()
	}
	deriver, err := feedback.NewDeriver(cfg)
	if err != nil {
		return nil, Summary{}, err
	}

	steps := make([]Step, 0, len(snaps))
	for i, s := range snaps {
		reading := memory.Reading{Coherence: s.Coherence, Entropy: s.Entropy, Energy: s.Energy, Aux: s.Aux}
		if err := memory.Validate(reading); err != nil {
			return nil, Summary{}, fmt.Errorf("snapshot %d: %w", i, err)
		}
		_, evicted := field.Append(s)
		rolling := analytics.Analyze(field)
		steps = append(steps, Step{
			Index:      i,
			Snapshot:   s,
			Evicted:    evicted,
			Analytics:  rolling,
			Parameters: deriver.Derive(rolling),
		})
	}
	return steps, Summarize(steps), nil
}

// Summarize computes aggregate stats from replay steps.
func Summarize(steps []Step) Summary {
	s := Summary{
		Steps:      len(steps),
		DecayRange: [2]float64{math.Inf(1), math.Inf(-1)},
		PhaseRange: [2]float64{math.Inf(1), math.Inf(-1)},
	}
	if len(steps) == 0 {
		s.DecayRange, s.PhaseRange = [2]float64{}, [2]float64{}
		return s
	}
	for _, st := range steps {
		if st.Evicted {
			s.Evictions++
		}
		s.DecayRange[0] = min(s.DecayRange[0], st.Parameters.DecayRate)
		s.DecayRange[1] = max(s.DecayRange[1], st.Parameters.DecayRate)
		s.PhaseRange[0] = min(s.PhaseRange[0], st.Parameters.PhaseRate)
		s.PhaseRange[1] = max(s.PhaseRange[1], st.Parameters.PhaseRate)
	}
	last := steps[len(steps)-1]
	s.Final = last.Analytics
	s.FinalRates = last.Parameters
	return s
}

// #endregion replay
