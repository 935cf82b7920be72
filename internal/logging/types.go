package logging

import "time"

// #region derivation-entry
// DerivationEntry is a single row in the derivation_log table.
type DerivationEntry struct {
	Tick           uint64
	TriggerType    string // "tick" | "rpc" | "replay"
	Samples        int
	CoherenceTrend float64
	EntropyTrend   float64
	DecayRate      float64
	PhaseRate      float64
	Reason         string
	CreatedAt      time.Time
}

// #endregion derivation-entry
