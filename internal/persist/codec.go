package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region format
// FormatVersion tags every persisted document. Any other tag is refused on load.
const FormatVersion = "memoryfield/v1"

// ErrIncompatibleFormat is returned when a document has an unknown version tag or
// cannot be read as a field.
var ErrIncompatibleFormat = errors.New("incompatible memory field format")

type header struct {
	Version string `json:"version"`
}

type document struct {
	Version   string           `json:"version"`
	Capacity  int              `json:"capacity"`
	Snapshots []snapshotRecord `json:"snapshots"`
}

type snapshotRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Coherence float64            `json:"coherence"`
	Entropy   float64            `json:"entropy"`
	Energy    float64            `json:"energy"`
	Aux       map[string]float64 `json:"aux,omitempty"`
}

// #endregion format

// #region encode
// Encode serialises the field oldest first.
func Encode(field *memory.Field) ([]byte, error) {
	return encodeSnapshots(field.Cap(), field.Slice())
}

func encodeSnapshots(capacity int, snaps []memory.Snapshot) ([]byte, error) {
	doc := document{
		Version:   FormatVersion,
		Capacity:  capacity,
		Snapshots: make([]snapshotRecord, len(snaps)),
	}
	for i, s := range snaps {
		doc.Snapshots[i] = snapshotRecord{
			Timestamp: s.Timestamp,
			Coherence: s.Coherence,
			Entropy:   s.Entropy,
			Energy:    s.Energy,
			Aux:       s.Aux,
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal field: %w", err)
	}
	return data, nil
}

// #endregion encode

// #region decode
// Decode checks the version tag before reading anything else, then rebuilds the field.
// It never returns a partially populated field.
func Decode(data []byte) (*memory.Field, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: unreadable document: %v", ErrIncompatibleFormat, err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %q, want %q", ErrIncompatibleFormat, h.Version, FormatVersion)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleFormat, err)
	}

	snaps := make([]memory.Snapshot, len(doc.Snapshots))
	for i, rec := range doc.Snapshots {
		err := memory.Validate(memory.Reading{
			Coherence: rec.Coherence,
			Entropy:   rec.Entropy,
			Energy:    rec.Energy,
			Aux:       rec.Aux,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot %d: %v", ErrIncompatibleFormat, i, err)
		}
		snaps[i] = memory.Snapshot{
			Timestamp: rec.Timestamp,
			Coherence: rec.Coherence,
			Entropy:   rec.Entropy,
			Energy:    rec.Energy,
			Aux:       rec.Aux,
		}
	}

	field, err := memory.Restore(doc.Capacity, snaps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleFormat, err)
	}
	return field, nil
}

// #endregion decode
