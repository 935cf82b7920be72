package feedback

import (
	"fmt"
	"math"

	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region defaults
const (
	DefaultDecayMin  = 0.001
	DefaultDecayMax  = 0.02
	DefaultDecayGain = 10.0

	DefaultPhaseMin  = 0.05
	DefaultPhaseMax  = 0.5
	DefaultPhaseGain = 10.0
)

// #endregion defaults

// #region parameters
// Parameters are the control rates handed to the external oscillatory loop.
type Parameters struct {
	DecayRate float64 `json:"decay_rate"`
	PhaseRate float64 `json:"phase_rate"`
}

// #endregion parameters

// #region mapping
// Mapping squashes a trend into [Min, Max] with a logistic-shaped tanh curve.
// A zero trend lands on the midpoint; Gain sets how fast the curve saturates.
type Mapping struct {
	Min  float64 `yaml:"min" env:"MIN"`
	Max  float64 `yaml:"max" env:"MAX"`
	Gain float64 `yaml:"gain" env:"GAIN"`
}

// Apply maps trend into [Min, Max]. NaN is treated as a flat trend.
func (m Mapping) Apply(trend float64) float64 {
	if math.IsNaN(trend) {
		trend = 0
	}
	unit := (1 + math.Tanh(m.Gain*trend)) / 2
	switch unit {
	case 0:
		return m.Min
	case 1:
		return m.Max
	}
	v := m.Min + (m.Max-m.Min)*unit
	// rounding can push the sum one ulp past the bounds
	if v < m.Min {
		return m.Min
	}
	if v > m.Max {
		return m.Max
	}
	return v
}

func (m Mapping) validate(name string) error {
	for _, v := range []float64{m.Min, m.Max, m.Gain} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s mapping has non-finite bound", memory.ErrConfiguration, name)
		}
	}
	if m.Min >= m.Max {
		return fmt.Errorf("%w: %s min %v must be below max %v", memory.ErrConfiguration, name, m.Min, m.Max)
	}
	if m.Gain <= 0 {
		return fmt.Errorf("%w: %s gain must be positive, got %v", memory.ErrConfiguration, name, m.Gain)
	}
	return nil
}

// #endregion mapping

// #region config
// Config binds the decay rate to the entropy trend and the phase rate to the
// coherence trend.
type Config struct {
	Decay Mapping `yaml:"decay" envPrefix:"DECAY_"`
	Phase Mapping `yaml:"phase" envPrefix:"PHASE_"`
}

// DefaultConfig returns the stock mapping bounds.
func DefaultConfig() Config {
	return Config{
		Decay: Mapping{Min: DefaultDecayMin, Max: DefaultDecayMax, Gain: DefaultDecayGain},
		Phase: Mapping{Min: DefaultPhaseMin, Max: DefaultPhaseMax, Gain: DefaultPhaseGain},
	}
}

// Validate rejects bounds that cannot produce a monotonic, bounded mapping.
func (c Config) Validate() error {
	if err := c.Decay.validate("decay"); err != nil {
		return err
	}
	return c.Phase.validate("phase")
}

// #endregion config
