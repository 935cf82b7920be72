package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/onlythejoe/void-engine/internal/config"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/persist"
	"github.com/onlythejoe/void-engine/internal/replay"
)

// #region command
type replayOptions struct {
	file     string
	fixture  string
	capacity int
	jsonOut  bool
}

func newReplayCmd() *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-derive rates step by step from a persisted field or a fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "persisted memory field to replay")
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "replay fixture (JSON) to replay instead of a field")
	cmd.Flags().IntVar(&opts.capacity, "capacity", 0, "replay into a field of this capacity (default: the source's)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	cmd.MarkFlagsOneRequired("file", "fixture")
	cmd.MarkFlagsMutuallyExclusive("file", "fixture")
	return cmd
}

// #endregion command

// #region replay
type stepRow struct {
	Index          int     `json:"index"`
	Coherence      float64 `json:"coherence"`
	Entropy        float64 `json:"entropy"`
	Evicted        bool    `json:"evicted"`
	Samples        int     `json:"samples"`
	CoherenceTrend float64 `json:"coherence_trend"`
	EntropyTrend   float64 `json:"entropy_trend"`
	DecayRate      float64 `json:"decay_rate"`
	PhaseRate      float64 `json:"phase_rate"`
}

type replayOutput struct {
	Capacity int       `json:"capacity"`
	Steps    []stepRow `json:"steps"`
	Summary  struct {
		Steps      int        `json:"steps"`
		Evictions  int        `json:"evictions"`
		DecayRange [2]float64 `json:"decay_range"`
		PhaseRange [2]float64 `json:"phase_range"`
	} `json:"summary"`
}

func runReplay(w io.Writer, opts replayOptions) error {
	capacity, snaps, cfg, err := replaySource(opts)
	if err != nil {
		return err
	}
	if opts.capacity > 0 {
		capacity = opts.capacity
	}

	steps, summary, err := replay.Replay(capacity, snaps, cfg)
	if err != nil {
		return err
	}

	out := replayOutput{Capacity: capacity, Steps: make([]stepRow, len(steps))}
	for i, st := range steps {
		out.Steps[i] = stepRow{
			Index:          st.Index,
			Coherence:      st.Snapshot.Coherence,
			Entropy:        st.Snapshot.Entropy,
			Evicted:        st.Evicted,
			Samples:        st.Analytics.Samples,
			CoherenceTrend: st.Analytics.CoherenceTrend,
			EntropyTrend:   st.Analytics.EntropyTrend,
			DecayRate:      st.Parameters.DecayRate,
			PhaseRate:      st.Parameters.PhaseRate,
		}
	}
	out.Summary.Steps = summary.Steps
	out.Summary.Evictions = summary.Evictions
	out.Summary.DecayRange = summary.DecayRange
	out.Summary.PhaseRange = summary.PhaseRange

	if opts.jsonOut {
		return printJSON(w, out)
	}
	printReplay(w, out)
	return nil
}

// replaySource returns the capacity, snapshots and mapping to replay with.
func replaySource(opts replayOptions) (int, []memory.Snapshot, feedback.Config, error) {
	if opts.fixture != "" {
		f, err := replay.LoadFixture(opts.fixture)
		if err != nil {
			return 0, nil, feedback.Config{}, err
		}
		return f.Capacity, f.ToSnapshots(), f.FeedbackConfig(), nil
	}

	field, err := persist.Load(opts.file, memory.DefaultCapacity)
	if err != nil {
		return 0, nil, feedback.Config{}, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return 0, nil, feedback.Config{}, err
	}
	return field.Cap(), slices.Collect(field.Snapshots()), cfg.Feedback, nil
}

// #endregion replay

// #region table
func printReplay(w io.Writer, out replayOutput) {
	fmt.Fprintf(w, "%5s  %9s  %9s  %-7s  %7s  %10s  %10s  %9s  %9s\n",
		"Step", "Coherence", "Entropy", "Evicted", "Samples", "Coh Trend", "Ent Trend", "Decay", "Phase")
	for _, s := range out.Steps {
		fmt.Fprintf(w, "%5d  %9.4f  %9.4f  %-7t  %7d  %+10.6f  %+10.6f  %9.6f  %9.6f\n",
			s.Index, s.Coherence, s.Entropy, s.Evicted, s.Samples, s.CoherenceTrend, s.EntropyTrend, s.DecayRate, s.PhaseRate)
	}
	fmt.Fprintf(w, "\n%d steps, %d evictions, capacity %d\n", out.Summary.Steps, out.Summary.Evictions, out.Capacity)
	fmt.Fprintf(w, "decay range [%.6f, %.6f]  phase range [%.6f, %.6f]\n",
		out.Summary.DecayRange[0], out.Summary.DecayRange[1], out.Summary.PhaseRange[0], out.Summary.PhaseRange[1])
}

// #endregion table
