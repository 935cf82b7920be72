package analytics

import (
	"iter"
	"time"

	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region types
// Source is anything that can list snapshots oldest first. *memory.Field satisfies it.
type Source interface {
	Snapshots() iter.Seq[memory.Snapshot]
}

// Rolling holds trend statistics over the retained window. A trend is the average
// change between consecutive samples; it is zero until two samples exist.
type Rolling struct {
	Samples        int
	CoherenceTrend float64
	EntropyTrend   float64
	EnergyTrend    float64
	CoherenceMean  float64
	EntropyMean    float64
	Span           time.Duration
}

// #endregion types

// #region analyze
// Analyze computes rolling statistics over src in a single pass. It is a pure
// function of the sequence it sees: the same contents always give identical results.
func Analyze(src Source) Rolling {
	var (
		r                   Rolling
		first, prev         memory.Snapshot
		dCoh, dEnt, dEnergy float64
		sumCoh, sumEnt      float64
	)

	for s := range src.Snapshots() {
		if r.Samples == 0 {
			first = s
		} else {
			dCoh += s.Coherence - prev.Coherence
			dEnt += s.Entropy - prev.Entropy
			dEnergy += s.Energy - prev.Energy
		}
		sumCoh += s.Coherence
		sumEnt += s.Entropy
		prev = s
		r.Samples++
	}

	if r.Samples == 0 {
		return r
	}
	r.CoherenceMean = sumCoh / float64(r.Samples)
	r.EntropyMean = sumEnt / float64(r.Samples)
	if r.Samples < 2 {
		return r
	}

	steps := float64(r.Samples - 1)
	r.CoherenceTrend = dCoh / steps
	r.EntropyTrend = dEnt / steps
	r.EnergyTrend = dEnergy / steps
	r.Span = prev.Timestamp.Sub(first.Timestamp)
	return r
}

// #endregion analyze
