package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Capacity    int               `json:"capacity"`
	Feedback    *feedback.Config  `json:"feedback,omitempty"`
	Snapshots   []FixtureSnapshot `json:"snapshots"`
	Expected    []FixtureExpected `json:"expected"`
}

// FixtureSnapshot mirrors memory.Snapshot with JSON tags.
type FixtureSnapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Coherence float64            `json:"coherence"`
	Entropy   float64            `json:"entropy"`
	Energy    float64            `json:"energy"`
	Aux       map[string]float64 `json:"aux,omitempty"`
}

// FixtureExpected captures the expected field shape after one step. Trends are
// compared with a tolerance; the rate directions are "rising", "falling" or "flat"
// relative to the mapping midpoint.
type FixtureExpected struct {
	Samples        int     `json:"samples"`
	Evicted        bool    `json:"evicted"`
	CoherenceTrend float64 `json:"coherence_trend"`
	EntropyTrend   float64 `json:"entropy_trend"`
	Decay          string  `json:"decay"`
	Phase          string  `json:"phase"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToSnapshots converts fixture snapshots to domain snapshots.
func (f *Fixture) ToSnapshots() []memory.Snapshot {
	snaps := make([]memory.Snapshot, len(f.Snapshots))
	for i, fs := range f.Snapshots {
		snaps[i] = memory.Snapshot{
			Timestamp: fs.Timestamp,
			Coherence: fs.Coherence,
			Entropy:   fs.Entropy,
			Energy:    fs.Energy,
			Aux:       fs.Aux,
		}
	}
	return snaps
}

// FeedbackConfig returns the fixture's mapping, or the defaults when it has none.
func (f *Fixture) FeedbackConfig() feedback.Config {
	if f.Feedback == nil {
		return feedback.DefaultConfig()
	}
	return *f.Feedback
}

// #endregion fixture-loader

// #region direction
// Direction classifies a rate against the midpoint of its mapping.
func Direction(rate float64, m feedback.Mapping) string {
	mid := m.Apply(0)
	switch {
	case rate > mid:
		return "rising"
	case rate < mid:
		return "falling"
	default:
		return "flat"
	}
}

// #endregion direction
