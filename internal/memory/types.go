package memory

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// #region bounds
const (
	// DefaultCapacity is the number of frames a field holds when nothing else is configured.
	DefaultCapacity = 512
	// MaxCapacity caps a single field; anything larger is treated as a corrupt setting.
	MaxCapacity = 1 << 20

	MinCoherence = 0.0
	MaxCoherence = 1.0
	MinEntropy   = 0.0
	MaxEntropy   = 1.0
)

// #endregion bounds

// #region errors
var (
	// ErrConfiguration is returned when a field or its collaborators are built with invalid parameters.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrValidation is the sentinel behind every ValidationError.
	ErrValidation = errors.New("invalid reading")
)

// ValidationError reports the reading field that was rejected and why.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s=%v %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// #endregion errors

// #region snapshot
// Snapshot is one immutable frame of system state. The field clones Aux on the way
// in and on the way out, so a retained snapshot is never mutated. An empty Aux is
// kept as nil.
type Snapshot struct {
	Timestamp time.Time
	Coherence float64
	Entropy   float64
	Energy    float64
	Aux       map[string]float64
}

func (s Snapshot) clone() Snapshot {
	if len(s.Aux) == 0 {
		s.Aux = nil
	} else {
		s.Aux = maps.Clone(s.Aux)
	}
	return s
}

// #endregion snapshot

// #region reading
// Reading is the raw state sample supplied by the layers driving the field.
type Reading struct {
	Coherence float64
	Entropy   float64
	Energy    float64
	Aux       map[string]float64
}

// #endregion reading
