package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/archive"
	"github.com/onlythejoe/void-engine/internal/codec"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/persist"
)

// #region helpers
func writeField(t *testing.T, capacity int, coherence ...float64) string {
	t.Helper()
	field, err := memory.NewField(capacity)
	require.NoError(t, err)
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range coherence {
		field.Append(memory.Snapshot{Timestamp: t0.Add(time.Duration(i) * time.Second), Coherence: c, Entropy: 0.5})
	}
	path := filepath.Join(t.TempDir(), "field.json")
	_, err = persist.NewWriter(path).Flush(context.Background(), field)
	require.NoError(t, err)
	return path
}

type fakeRecorder struct {
	reply   codec.RecordReply
	err     error
	flushed int
}

func (f *fakeRecorder) Record(context.Context, memory.Reading) (codec.RecordReply, error) {
	return f.reply, f.err
}

func (f *fakeRecorder) Flush(context.Context) error {
	f.flushed++
	return nil
}

// #endregion helpers

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "inspect", "replay", "record"}, names)
}

func TestInspect_JSON(t *testing.T) {
	path := writeField(t, 4, 0.2, 0.8)
	var buf bytes.Buffer

	err := runInspect(context.Background(), &buf, inspectOptions{file: path, last: 20, jsonOut: true})
	require.NoError(t, err)

	var out inspectOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 4, out.Capacity)
	assert.Equal(t, 2, out.Len)
	assert.InDelta(t, 0.6, out.Analytics.CoherenceTrend, 1e-12)
	assert.Equal(t, "1s", out.Analytics.Span)
	assert.Greater(t, out.Parameters.PhaseRate, feedback.DefaultConfig().Phase.Apply(0))
	assert.Len(t, out.Snapshots, 2)
}

func TestInspect_LastAndTable(t *testing.T) {
	path := writeField(t, 8, 0.1, 0.2, 0.3, 0.4)
	var buf bytes.Buffer

	err := runInspect(context.Background(), &buf, inspectOptions{file: path, last: 2})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Snapshots:  4 / 8")
	assert.Contains(t, buf.String(), "2026-04-01T00:00:03Z")
	assert.NotContains(t, buf.String(), "2026-04-01T00:00:00Z")
}

func TestInspect_MissingFileFails(t *testing.T) {
	var buf bytes.Buffer
	err := runInspect(context.Background(), &buf, inspectOptions{file: filepath.Join(t.TempDir(), "none.json"), jsonOut: true})
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Zero(t, buf.Len())
}

func TestInspect_WithArchive(t *testing.T) {
	path := writeField(t, 4, 0.5)
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	store, err := archive.NewStore(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = store.ArchiveSnapshot(ctx, memory.Snapshot{Timestamp: time.Now(), Coherence: 0.1, Entropy: 0.1})
	require.NoError(t, err)
	require.NoError(t, store.LogFlush(ctx, archive.FlushRecord{Path: path, SnapshotCount: 1, Outcome: "ok"}))
	require.NoError(t, store.Close())

	var buf bytes.Buffer
	require.NoError(t, runInspect(ctx, &buf, inspectOptions{file: path, archive: dbPath, jsonOut: true}))

	var out inspectOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.NotNil(t, out.Archive)
	assert.Equal(t, 1, out.Archive.Evicted)
	assert.Len(t, out.Archive.Flushes, 1)
}

func TestReplay_File(t *testing.T) {
	path := writeField(t, 3, 0.1, 0.2, 0.3)
	var buf bytes.Buffer

	require.NoError(t, runReplay(&buf, replayOptions{file: path, capacity: 2, jsonOut: true}))

	var out replayOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Capacity)
	require.Len(t, out.Steps, 3)
	assert.True(t, out.Steps[2].Evicted)
	assert.Equal(t, 1, out.Summary.Evictions)
}

func TestReplay_Fixture(t *testing.T) {
	var buf bytes.Buffer
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "rising_coherence.json")

	require.NoError(t, runReplay(&buf, replayOptions{fixture: fixture}))
	assert.Contains(t, buf.String(), "5 steps, 2 evictions, capacity 3")
}

func TestRecord_PrintsReply(t *testing.T) {
	rec := &fakeRecorder{reply: codec.RecordReply{
		Tick:       3,
		Snapshot:   memory.Snapshot{Timestamp: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		Analytics:  analytics.Rolling{Samples: 3},
		Parameters: feedback.Parameters{DecayRate: 0.01, PhaseRate: 0.2},
		Warning:    "archive offline",
	}}
	var buf bytes.Buffer

	require.NoError(t, runRecord(context.Background(), &buf, rec, recordOptions{flush: true}))
	assert.Equal(t, 1, rec.flushed)
	assert.Contains(t, buf.String(), "tick 3")
	assert.Contains(t, buf.String(), "(flushed)")
	assert.Contains(t, buf.String(), "warning: archive offline")
}

func TestRecord_Error(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("unavailable")}
	err := runRecord(context.Background(), &bytes.Buffer{}, rec, recordOptions{flush: true})
	require.Error(t, err)
	assert.Zero(t, rec.flushed)
}

func TestParseAux(t *testing.T) {
	aux, err := parseAux(map[string]string{"drift": "0.25"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"drift": 0.25}, aux)

	_, err = parseAux(map[string]string{"drift": "lots"})
	assert.Error(t, err)

	aux, err = parseAux(nil)
	require.NoError(t, err)
	assert.Nil(t, aux)
}
