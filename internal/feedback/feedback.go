package feedback

import "github.com/onlythejoe/void-engine/internal/analytics"

// #region deriver
// Deriver turns rolling analytics into control parameters.
type Deriver struct {
	config Config
}

// NewDeriver validates config and returns a Deriver using it.
func NewDeriver(config Config) (*Deriver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{config: config}, nil
}

// Config returns the mapping bounds in use.
func (d *Deriver) Config() Config {
	return d.config
}

// #endregion deriver

// #region derive
// Derive maps the entropy trend to a decay rate and the coherence trend to a phase
// rate. Rising entropy forgets faster; rising coherence synchronises faster.
func (d *Deriver) Derive(a analytics.Rolling) Parameters {
	return Parameters{
		DecayRate: d.config.Decay.Apply(a.EntropyTrend),
		PhaseRate: d.config.Phase.Apply(a.CoherenceTrend),
	}
}

// DeriveParameters applies DefaultConfig.
func DeriveParameters(a analytics.Rolling) Parameters {
	d := Deriver{config: DefaultConfig()}
	return d.Derive(a)
}

// #endregion derive
