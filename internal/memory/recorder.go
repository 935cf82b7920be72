package memory

import (
	"fmt"
	"math"
	"time"
)

// #region recorder
// Recorder turns readings into snapshots and appends them to a field.
// It never touches persistent storage.
type Recorder struct {
	field   *Field
	clock   func() time.Time
	onEvict func(Snapshot)
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

// WithEvictHook registers fn to receive every snapshot pushed out of the field.
func WithEvictHook(fn func(Snapshot)) RecorderOption {
	return func(r *Recorder) { r.onEvict = fn }
}

// NewRecorder creates a Recorder writing into field.
func NewRecorder(field *Field, opts ...RecorderOption) *Recorder {
	r := &Recorder{field: field, clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// #endregion recorder

// #region record
// Record validates the reading, stamps it and appends it. Invalid readings are
// rejected and leave the field unchanged.
func (r *Recorder) Record(reading Reading) (Snapshot, error) {
	if err := Validate(reading); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Timestamp: r.clock().UTC(),
		Coherence: reading.Coherence,
		Entropy:   reading.Entropy,
		Energy:    reading.Energy,
		Aux:       reading.Aux,
	}.clone()

	if evicted, ok := r.field.Append(snap); ok && r.onEvict != nil {
		r.onEvict(evicted)
	}
	return snap, nil
}

// #endregion record

// #region validate
// Validate checks that every scalar is finite and that coherence and entropy sit
// inside their bounds.
func Validate(reading Reading) error {
	if err := checkRange("coherence", reading.Coherence, MinCoherence, MaxCoherence); err != nil {
		return err
	}
	if err := checkRange("entropy", reading.Entropy, MinEntropy, MaxEntropy); err != nil {
		return err
	}
	if !finite(reading.Energy) {
		return &ValidationError{Field: "energy", Value: reading.Energy, Reason: "is not finite"}
	}
	for k, v := range reading.Aux {
		if !finite(v) {
			return &ValidationError{Field: "aux." + k, Value: v, Reason: "is not finite"}
		}
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if !finite(v) {
		return &ValidationError{Field: name, Value: v, Reason: "is not finite"}
	}
	if v < lo || v > hi {
		return &ValidationError{Field: name, Value: v, Reason: fmt.Sprintf("is outside [%g, %g]", lo, hi)}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion validate
