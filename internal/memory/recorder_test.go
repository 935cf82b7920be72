package memory

import (
	"errors"
	"math"
	"testing"
	"time"
)

func fixedClock(t0 time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestRecord_StampsAndAppends(t *testing.T) {
	f, _ := NewField(4)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(f, WithClock(fixedClock(t0)))

	snap, err := r.Record(Reading{Coherence: 0.7, Entropy: 0.2, Energy: 3.5, Aux: map[string]float64{"k": 1}})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !snap.Timestamp.Equal(t0.Add(time.Second)) {
		t.Fatalf("unexpected timestamp %v", snap.Timestamp)
	}
	if snap.Coherence != 0.7 || snap.Entropy != 0.2 || snap.Energy != 3.5 || snap.Aux["k"] != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if f.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", f.Len())
	}
}

func TestRecord_RejectsInvalid(t *testing.T) {
	f, _ := NewField(4)
	r := NewRecorder(f)

	cases := []struct {
		name    string
		reading Reading
		field   string
	}{
		{"coherence above", Reading{Coherence: 1.01, Entropy: 0.5}, "coherence"},
		{"coherence below", Reading{Coherence: -0.1, Entropy: 0.5}, "coherence"},
		{"entropy above", Reading{Coherence: 0.5, Entropy: 2}, "entropy"},
		{"entropy nan", Reading{Coherence: 0.5, Entropy: math.NaN()}, "entropy"},
		{"coherence inf", Reading{Coherence: math.Inf(1), Entropy: 0.5}, "coherence"},
		{"energy inf", Reading{Coherence: 0.5, Entropy: 0.5, Energy: math.Inf(-1)}, "energy"},
		{"aux nan", Reading{Coherence: 0.5, Entropy: 0.5, Aux: map[string]float64{"x": math.NaN()}}, "aux.x"},
	}
	for _, tc := range cases {
		_, err := r.Record(tc.reading)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %v", tc.name, tc.field, err)
		}
	}
	if f.Len() != 0 {
		t.Fatalf("rejected readings must not touch the field, len=%d", f.Len())
	}
}

func TestRecord_BoundsInclusive(t *testing.T) {
	f, _ := NewField(4)
	r := NewRecorder(f)
	for _, rd := range []Reading{
		{Coherence: MinCoherence, Entropy: MinEntropy},
		{Coherence: MaxCoherence, Entropy: MaxEntropy},
	} {
		if _, err := r.Record(rd); err != nil {
			t.Fatalf("Record(%+v): %v", rd, err)
		}
	}
}

func TestRecord_EvictHook(t *testing.T) {
	f, _ := NewField(2)
	var evicted []Snapshot
	r := NewRecorder(f,
		WithClock(fixedClock(time.Unix(0, 0))),
		WithEvictHook(func(s Snapshot) { evicted = append(evicted, s) }),
	)

	for _, c := range []float64{0.1, 0.2, 0.3, 0.4} {
		if _, err := r.Record(Reading{Coherence: c, Entropy: 0.5}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if len(evicted) != 2 || evicted[0].Coherence != 0.1 || evicted[1].Coherence != 0.2 {
		t.Fatalf("unexpected evictions %+v", evicted)
	}
}
