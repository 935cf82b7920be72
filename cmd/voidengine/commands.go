package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// #region root
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voidengine",
		Short: "Bounded temporal memory for a coherence/entropy feedback loop",
		Long: `voidengine keeps a bounded window of coherence and entropy snapshots,
derives decay and phase rates from their trends, and persists the window
between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newInspectCmd(),
		newReplayCmd(),
		newRecordCmd(),
	)
	return root
}

// #endregion root

// #region output
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// #endregion output
