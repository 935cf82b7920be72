package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/onlythejoe/void-engine/internal/codec"
	"github.com/onlythejoe/void-engine/internal/config"
	"github.com/onlythejoe/void-engine/internal/memory"
)

const recordTimeout = 10 * time.Second

// #region command
type recordOptions struct {
	addr    string
	reading memory.Reading
	aux     map[string]string
	flush   bool
	jsonOut bool
}

func newRecordCmd() *cobra.Command {
	var opts recordOptions
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Send one reading to a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			aux, err := parseAux(opts.aux)
			if err != nil {
				return err
			}
			opts.reading.Aux = aux

			client, err := codec.NewClient(opts.addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), recordTimeout)
			defer cancel()
			return runRecord(ctx, cmd.OutOrStdout(), client, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", config.Default().GRPCAddr, "service address")
	cmd.Flags().Float64Var(&opts.reading.Coherence, "coherence", 0, "coherence in [0, 1]")
	cmd.Flags().Float64Var(&opts.reading.Entropy, "entropy", 0, "entropy in [0, 1]")
	cmd.Flags().Float64Var(&opts.reading.Energy, "energy", 0, "energy")
	cmd.Flags().StringToStringVar(&opts.aux, "aux", nil, "auxiliary values as key=number pairs")
	cmd.Flags().BoolVar(&opts.flush, "flush", false, "ask the service to persist right after recording")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("coherence")
	_ = cmd.MarkFlagRequired("entropy")
	return cmd
}

// #endregion command

// #region record
type recorder interface {
	Record(ctx context.Context, r memory.Reading) (codec.RecordReply, error)
	Flush(ctx context.Context) error
}

type recordOutput struct {
	Tick      uint64  `json:"tick"`
	Timestamp string  `json:"timestamp"`
	Evicted   int     `json:"evicted"`
	Samples   int     `json:"samples"`
	DecayRate float64 `json:"decay_rate"`
	PhaseRate float64 `json:"phase_rate"`
	Flushed   bool    `json:"flushed"`
	Warning   string  `json:"warning,omitempty"`
}

func runRecord(ctx context.Context, w io.Writer, client recorder, opts recordOptions) error {
	reply, err := client.Record(ctx, opts.reading)
	if err != nil {
		return err
	}
	flushed := reply.Flushed
	if opts.flush && !flushed {
		if err := client.Flush(ctx); err != nil {
			return err
		}
		flushed = true
	}

	out := recordOutput{
		Tick:      reply.Tick,
		Timestamp: reply.Snapshot.Timestamp.Format(time.RFC3339Nano),
		Evicted:   reply.Evicted,
		Samples:   reply.Analytics.Samples,
		DecayRate: reply.Parameters.DecayRate,
		PhaseRate: reply.Parameters.PhaseRate,
		Flushed:   flushed,
		Warning:   reply.Warning,
	}
	if opts.jsonOut {
		return printJSON(w, out)
	}
	fmt.Fprintf(w, "tick %d at %s: %d samples, decay %.6f, phase %.6f",
		out.Tick, out.Timestamp, out.Samples, out.DecayRate, out.PhaseRate)
	if out.Flushed {
		fmt.Fprint(w, " (flushed)")
	}
	fmt.Fprintln(w)
	if out.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", out.Warning)
	}
	return nil
}

func parseAux(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	aux := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("aux %s: %w", k, err)
		}
		aux[k] = f
	}
	return aux, nil
}

// #endregion record
