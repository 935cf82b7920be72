package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/archive"
	"github.com/onlythejoe/void-engine/internal/config"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/persist"
)

// #region command
type inspectOptions struct {
	file    string
	archive string
	last    int
	jsonOut bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a persisted memory field with its analytics and derived rates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "persisted memory field (required)")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "SQLite archive to summarise alongside the field")
	cmd.Flags().IntVar(&opts.last, "last", 20, "show the N most recent snapshots")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// #endregion command

// #region inspect
type snapshotRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Coherence float64            `json:"coherence"`
	Entropy   float64            `json:"entropy"`
	Energy    float64            `json:"energy"`
	Aux       map[string]float64 `json:"aux,omitempty"`
}

type archiveSummary struct {
	Evicted int                   `json:"evicted"`
	Flushes []archive.FlushRecord `json:"recent_flushes"`
}

type inspectOutput struct {
	File       string              `json:"file"`
	Capacity   int                 `json:"capacity"`
	Len        int                 `json:"len"`
	Analytics  analyticsRow        `json:"analytics"`
	Parameters feedback.Parameters `json:"parameters"`
	Snapshots  []snapshotRow       `json:"snapshots"`
	Archive    *archiveSummary     `json:"archive,omitempty"`
}

type analyticsRow struct {
	Samples        int     `json:"samples"`
	CoherenceTrend float64 `json:"coherence_trend"`
	EntropyTrend   float64 `json:"entropy_trend"`
	EnergyTrend    float64 `json:"energy_trend"`
	CoherenceMean  float64 `json:"coherence_mean"`
	EntropyMean    float64 `json:"entropy_mean"`
	Span           string  `json:"span"`
}

func toAnalyticsRow(r analytics.Rolling) analyticsRow {
	return analyticsRow{
		Samples:        r.Samples,
		CoherenceTrend: r.CoherenceTrend,
		EntropyTrend:   r.EntropyTrend,
		EnergyTrend:    r.EnergyTrend,
		CoherenceMean:  r.CoherenceMean,
		EntropyMean:    r.EntropyMean,
		Span:           r.Span.String(),
	}
}

func runInspect(ctx context.Context, w io.Writer, opts inspectOptions) error {
	// an explicit target must exist; only serve treats a missing file as a first run
	if _, err := os.Stat(opts.file); err != nil {
		return fmt.Errorf("inspect %s: %w", opts.file, err)
	}
	field, err := persist.Load(opts.file, memory.DefaultCapacity)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	deriver, err := feedback.NewDeriver(cfg.Feedback)
	if err != nil {
		return err
	}
	rolling := analytics.Analyze(field)

	snaps := field.Slice()
	if opts.last > 0 && len(snaps) > opts.last {
		snaps = snaps[len(snaps)-opts.last:]
	}
	out := inspectOutput{
		File:       opts.file,
		Capacity:   field.Cap(),
		Len:        field.Len(),
		Analytics:  toAnalyticsRow(rolling),
		Parameters: deriver.Derive(rolling),
		Snapshots:  make([]snapshotRow, len(snaps)),
	}
	for i, s := range snaps {
		out.Snapshots[i] = snapshotRow(s)
	}

	if opts.archive != "" {
		summary, err := summariseArchive(ctx, opts.archive)
		if err != nil {
			return err
		}
		out.Archive = summary
	}

	if opts.jsonOut {
		return printJSON(w, out)
	}
	printInspect(w, out)
	return nil
}

func summariseArchive(ctx context.Context, path string) (*archiveSummary, error) {
	store, err := archive.NewStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	evicted, err := store.CountEvicted(ctx)
	if err != nil {
		return nil, err
	}
	flushes, err := store.ListFlushes(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &archiveSummary{Evicted: evicted, Flushes: flushes}, nil
}

// #endregion inspect

// #region table
func printInspect(w io.Writer, out inspectOutput) {
	fmt.Fprintf(w, "File:       %s\n", out.File)
	fmt.Fprintf(w, "Snapshots:  %d / %d\n", out.Len, out.Capacity)
	fmt.Fprintf(w, "Span:       %s\n", out.Analytics.Span)
	fmt.Fprintf(w, "Trends:     coherence %+.6f  entropy %+.6f  energy %+.6f\n",
		out.Analytics.CoherenceTrend, out.Analytics.EntropyTrend, out.Analytics.EnergyTrend)
	fmt.Fprintf(w, "Means:      coherence %.4f  entropy %.4f\n", out.Analytics.CoherenceMean, out.Analytics.EntropyMean)
	fmt.Fprintf(w, "Rates:      decay %.6f  phase %.6f\n", out.Parameters.DecayRate, out.Parameters.PhaseRate)

	if len(out.Snapshots) > 0 {
		fmt.Fprintf(w, "\n%-30s  %9s  %9s  %9s\n", "Timestamp", "Coherence", "Entropy", "Energy")
		fmt.Fprintf(w, "%-30s+-%9s+-%9s+-%9s\n", "------------------------------", "---------", "---------", "---------")
		for _, s := range out.Snapshots {
			fmt.Fprintf(w, "%-30s  %9.4f  %9.4f  %9.4f\n", s.Timestamp.Format(time.RFC3339Nano), s.Coherence, s.Entropy, s.Energy)
		}
	}

	if out.Archive != nil {
		fmt.Fprintf(w, "\nArchive:    %d evicted snapshots\n", out.Archive.Evicted)
		for _, f := range out.Archive.Flushes {
			fmt.Fprintf(w, "  %s  %-5s  %4d snapshots  %s\n", f.CreatedAt.Format(time.RFC3339), f.Outcome, f.SnapshotCount, f.Duration)
		}
	}
}

// #endregion table
