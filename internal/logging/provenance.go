package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region log-derivation
// LogDerivation writes a provenance entry to the derivation_log table.
func LogDerivation(ctx context.Context, db *sql.DB, entry DerivationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO derivation_log (tick, trigger_type, samples, coherence_trend, entropy_trend, decay_rate, phase_rate, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(entry.Tick),
		entry.TriggerType,
		entry.Samples,
		entry.CoherenceTrend,
		entry.EntropyTrend,
		entry.DecayRate,
		entry.PhaseRate,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log derivation: %w", err)
	}
	return nil
}

// #endregion log-derivation

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
