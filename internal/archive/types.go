package archive

import (
	"time"

	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region archived-snapshot
// ArchivedSnapshot is a snapshot that was pushed out of the live field.
type ArchivedSnapshot struct {
	ID         string
	Snapshot   memory.Snapshot
	ArchivedAt time.Time
}

// #endregion archived-snapshot

// #region flush-record
// FlushRecord is one row of the flush log.
type FlushRecord struct {
	ID            string
	Path          string
	SnapshotCount int
	Outcome       string // "ok" | "error"
	Error         string
	Duration      time.Duration
	CreatedAt     time.Time
}

// #endregion flush-record
