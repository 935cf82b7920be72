package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/onlythejoe/void-engine/internal/logging"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS evicted_snapshots (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	recorded_at   TEXT NOT NULL,
	coherence     REAL NOT NULL,
	entropy       REAL NOT NULL,
	energy        REAL NOT NULL,
	aux_json      TEXT,
	archived_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flush_log (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	path           TEXT NOT NULL,
	snapshot_count INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	error          TEXT,
	duration_ms    INTEGER NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS derivation_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	tick            INTEGER NOT NULL,
	trigger_type    TEXT NOT NULL,
	samples         INTEGER NOT NULL,
	coherence_trend REAL NOT NULL,
	entropy_trend   REAL NOT NULL,
	decay_rate      REAL NOT NULL,
	phase_rate      REAL NOT NULL,
	reason          TEXT,
	created_at      TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store keeps the long-term history that no longer fits in the live field.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection serialises writers from ticks and background flushes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region snapshots
// ArchiveSnapshot stores an evicted snapshot and returns its new ID.
func (s *Store) ArchiveSnapshot(ctx context.Context, snap memory.Snapshot) (string, error) {
	id := uuid.New().String()

	var auxJSON interface{}
	if len(snap.Aux) > 0 {
		b, err := json.Marshal(snap.Aux)
		if err != nil {
			return "", fmt.Errorf("marshal aux: %w", err)
		}
		auxJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evicted_snapshots (id, recorded_at, coherence, entropy, energy, aux_json, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, snap.Timestamp.UTC().Format(time.RFC3339Nano), snap.Coherence, snap.Entropy, snap.Energy,
		auxJSON, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// ListEvicted returns the most recent evicted snapshots, oldest first.
func (s *Store) ListEvicted(ctx context.Context, limit int) ([]ArchivedSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, coherence, entropy, energy, aux_json, archived_at FROM (
			SELECT * FROM evicted_snapshots ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evicted: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSnapshot
	for rows.Next() {
		var rec ArchivedSnapshot
		var recordedStr, archivedStr string
		var auxJSON sql.NullString

		if err := rows.Scan(&rec.ID, &recordedStr, &rec.Snapshot.Coherence, &rec.Snapshot.Entropy,
			&rec.Snapshot.Energy, &auxJSON, &archivedStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Snapshot.Timestamp, _ = time.Parse(time.RFC3339Nano, recordedStr)
		rec.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archivedStr)
		if auxJSON.Valid {
			if err := json.Unmarshal([]byte(auxJSON.String), &rec.Snapshot.Aux); err != nil {
				return nil, fmt.Errorf("unmarshal aux: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountEvicted returns how many snapshots have been archived.
func (s *Store) CountEvicted(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evicted_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count evicted: %w", err)
	}
	return n, nil
}

// #endregion snapshots

// #region flush-log
// LogFlush appends one flush attempt to the flush log.
func (s *Store) LogFlush(ctx context.Context, rec FlushRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	var errText interface{}
	if rec.Error != "" {
		errText = rec.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flush_log (id, path, snapshot_count, outcome, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.SnapshotCount, rec.Outcome, errText, rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log flush: %w", err)
	}
	return nil
}

// ListFlushes returns the most recent flush attempts, newest first.
func (s *Store) ListFlushes(ctx context.Context, limit int) ([]FlushRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, snapshot_count, outcome, error, duration_ms, created_at
		 FROM flush_log ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list flushes: %w", err)
	}
	defer rows.Close()

	var out []FlushRecord
	for rows.Next() {
		var rec FlushRecord
		var errText sql.NullString
		var durationMs int64
		var createdStr string

		if err := rows.Scan(&rec.ID, &rec.Path, &rec.SnapshotCount, &rec.Outcome, &errText, &durationMs, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if errText.Valid {
			rec.Error = errText.String
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion flush-log

// #region derivations
// LogDerivation records one derived parameter set in the derivation log.
func (s *Store) LogDerivation(ctx context.Context, entry logging.DerivationEntry) error {
	return logging.LogDerivation(ctx, s.db, entry)
}

// #endregion derivations
