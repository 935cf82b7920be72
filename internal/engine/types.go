package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/archive"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/logging"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/metrics"
)

// #region archive-interface
// Archive receives evicted snapshots and the engine's audit trail.
// *archive.Store satisfies it.
type Archive interface {
	ArchiveSnapshot(ctx context.Context, snap memory.Snapshot) (string, error)
	LogFlush(ctx context.Context, rec archive.FlushRecord) error
	LogDerivation(ctx context.Context, entry logging.DerivationEntry) error
}

// #endregion archive-interface

// #region options
// Options configures an Engine. Zero values are usable.
type Options struct {
	FlushEvery int             // flush after every N ticks, 0 disables tick flushing
	Feedback   feedback.Config // zero value means feedback.DefaultConfig()
	Archive    Archive
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// #endregion options

// #region tick-result
// TickResult is everything one tick produced.
type TickResult struct {
	Tick       uint64
	Snapshot   memory.Snapshot
	Evicted    int
	Analytics  analytics.Rolling
	Parameters feedback.Parameters
	Flushed    bool
}

// #endregion tick-result
