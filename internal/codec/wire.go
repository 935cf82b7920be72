package codec

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region service
// ServiceName is the fully qualified gRPC service exposing a memory field.
const ServiceName = "voidengine.memory.v1.MemoryField"

// Full method names, as they appear on the wire.
const (
	MethodRecord     = "/" + ServiceName + "/Record"
	MethodAnalyze    = "/" + ServiceName + "/Analyze"
	MethodParameters = "/" + ServiceName + "/Parameters"
	MethodFlush      = "/" + ServiceName + "/Flush"
	MethodSnapshots  = "/" + ServiceName + "/Snapshots"
)

// ErrMalformed marks a message that does not carry the expected fields.
var ErrMalformed = errors.New("codec: malformed message")

// #endregion service

// #region types
// RecordReply is what the service answers to one accepted reading. Warning is set
// when the reading was recorded but archiving or flushing it failed.
type RecordReply struct {
	Tick       uint64
	Snapshot   memory.Snapshot
	Evicted    int
	Analytics  analytics.Rolling
	Parameters feedback.Parameters
	Flushed    bool
	Warning    string
}

// SnapshotList is the retained window plus the field capacity.
type SnapshotList struct {
	Capacity  int
	Snapshots []memory.Snapshot
}

// #endregion types

// #region reading
// EncodeReading converts a reading into its request message.
func EncodeReading(r memory.Reading) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"coherence": structpb.NewNumberValue(r.Coherence),
		"entropy":   structpb.NewNumberValue(r.Entropy),
		"energy":    structpb.NewNumberValue(r.Energy),
	}
	if len(r.Aux) > 0 {
		fields["aux"] = structpb.NewStructValue(encodeAux(r.Aux))
	}
	return &structpb.Struct{Fields: fields}
}

// DecodeReading parses a request message. Coherence and entropy are required.
func DecodeReading(st *structpb.Struct) (memory.Reading, error) {
	var (
		r   memory.Reading
		err error
	)
	if r.Coherence, err = number(st, "coherence", true); err != nil {
		return memory.Reading{}, err
	}
	if r.Entropy, err = number(st, "entropy", true); err != nil {
		return memory.Reading{}, err
	}
	if r.Energy, err = number(st, "energy", false); err != nil {
		return memory.Reading{}, err
	}
	if r.Aux, err = decodeAux(st); err != nil {
		return memory.Reading{}, err
	}
	return r, nil
}

// #endregion reading

// #region snapshot
// EncodeSnapshot converts a snapshot into a message.
func EncodeSnapshot(s memory.Snapshot) *structpb.Struct {
	st := EncodeReading(memory.Reading{Coherence: s.Coherence, Entropy: s.Entropy, Energy: s.Energy, Aux: s.Aux})
	st.Fields["timestamp"] = structpb.NewStringValue(s.Timestamp.UTC().Format(time.RFC3339Nano))
	return st
}

// DecodeSnapshot parses a snapshot message.
func DecodeSnapshot(st *structpb.Struct) (memory.Snapshot, error) {
	r, err := DecodeReading(st)
	if err != nil {
		return memory.Snapshot{}, err
	}
	raw, err := text(st, "timestamp")
	if err != nil {
		return memory.Snapshot{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	return memory.Snapshot{
		Timestamp: ts,
		Coherence: r.Coherence,
		Entropy:   r.Entropy,
		Energy:    r.Energy,
		Aux:       r.Aux,
	}, nil
}

// EncodeSnapshotList converts the retained window into a message.
func EncodeSnapshotList(l SnapshotList) *structpb.Struct {
	values := make([]*structpb.Value, len(l.Snapshots))
	for i, s := range l.Snapshots {
		values[i] = structpb.NewStructValue(EncodeSnapshot(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"capacity":  structpb.NewNumberValue(float64(l.Capacity)),
		"snapshots": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// DecodeSnapshotList parses a snapshot list message.
func DecodeSnapshotList(st *structpb.Struct) (SnapshotList, error) {
	capacity, err := number(st, "capacity", true)
	if err != nil {
		return SnapshotList{}, err
	}
	l := SnapshotList{Capacity: int(capacity)}
	list := st.GetFields()["snapshots"].GetListValue()
	for i, v := range list.GetValues() {
		inner := v.GetStructValue()
		if inner == nil {
			return SnapshotList{}, fmt.Errorf("%w: snapshots[%d] is not an object", ErrMalformed, i)
		}
		s, err := DecodeSnapshot(inner)
		if err != nil {
			return SnapshotList{}, fmt.Errorf("snapshots[%d]: %w", i, err)
		}
		l.Snapshots = append(l.Snapshots, s)
	}
	return l, nil
}

// #endregion snapshot

// #region analytics
// EncodeRolling converts rolling analytics into a message.
func EncodeRolling(r analytics.Rolling) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"samples":         structpb.NewNumberValue(float64(r.Samples)),
		"coherence_trend": structpb.NewNumberValue(r.CoherenceTrend),
		"entropy_trend":   structpb.NewNumberValue(r.EntropyTrend),
		"energy_trend":    structpb.NewNumberValue(r.EnergyTrend),
		"coherence_mean":  structpb.NewNumberValue(r.CoherenceMean),
		"entropy_mean":    structpb.NewNumberValue(r.EntropyMean),
		"span":            structpb.NewStringValue(r.Span.String()),
	}}
}

// DecodeRolling parses a rolling analytics message.
func DecodeRolling(st *structpb.Struct) (analytics.Rolling, error) {
	var (
		r   analytics.Rolling
		err error
	)
	samples, err := number(st, "samples", true)
	if err != nil {
		return analytics.Rolling{}, err
	}
	r.Samples = int(samples)
	for key, dst := range map[string]*float64{
		"coherence_trend": &r.CoherenceTrend,
		"entropy_trend":   &r.EntropyTrend,
		"energy_trend":    &r.EnergyTrend,
		"coherence_mean":  &r.CoherenceMean,
		"entropy_mean":    &r.EntropyMean,
	} {
		if *dst, err = number(st, key, true); err != nil {
			return analytics.Rolling{}, err
		}
	}
	span, err := text(st, "span")
	if err != nil {
		return analytics.Rolling{}, err
	}
	if r.Span, err = time.ParseDuration(span); err != nil {
		return analytics.Rolling{}, fmt.Errorf("%w: span: %v", ErrMalformed, err)
	}
	return r, nil
}

// #endregion analytics

// #region parameters
// EncodeParameters converts control parameters into a message.
func EncodeParameters(p feedback.Parameters) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"decay_rate": structpb.NewNumberValue(p.DecayRate),
		"phase_rate": structpb.NewNumberValue(p.PhaseRate),
	}}
}

// DecodeParameters parses a control parameters message.
func DecodeParameters(st *structpb.Struct) (feedback.Parameters, error) {
	decay, err := number(st, "decay_rate", true)
	if err != nil {
		return feedback.Parameters{}, err
	}
	phase, err := number(st, "phase_rate", true)
	if err != nil {
		return feedback.Parameters{}, err
	}
	return feedback.Parameters{DecayRate: decay, PhaseRate: phase}, nil
}

// #endregion parameters

// #region record-reply
// EncodeRecordReply converts a record reply into a message.
func EncodeRecordReply(r RecordReply) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"tick":       structpb.NewNumberValue(float64(r.Tick)),
		"snapshot":   structpb.NewStructValue(EncodeSnapshot(r.Snapshot)),
		"evicted":    structpb.NewNumberValue(float64(r.Evicted)),
		"analytics":  structpb.NewStructValue(EncodeRolling(r.Analytics)),
		"parameters": structpb.NewStructValue(EncodeParameters(r.Parameters)),
		"flushed":    structpb.NewBoolValue(r.Flushed),
	}
	if r.Warning != "" {
		fields["warning"] = structpb.NewStringValue(r.Warning)
	}
	return &structpb.Struct{Fields: fields}
}

// DecodeRecordReply parses a record reply message.
func DecodeRecordReply(st *structpb.Struct) (RecordReply, error) {
	var (
		r   RecordReply
		err error
	)
	tick, err := number(st, "tick", true)
	if err != nil {
		return RecordReply{}, err
	}
	r.Tick = uint64(tick)
	evicted, err := number(st, "evicted", false)
	if err != nil {
		return RecordReply{}, err
	}
	r.Evicted = int(evicted)
	if r.Snapshot, err = DecodeSnapshot(object(st, "snapshot")); err != nil {
		return RecordReply{}, fmt.Errorf("snapshot: %w", err)
	}
	if r.Analytics, err = DecodeRolling(object(st, "analytics")); err != nil {
		return RecordReply{}, fmt.Errorf("analytics: %w", err)
	}
	if r.Parameters, err = DecodeParameters(object(st, "parameters")); err != nil {
		return RecordReply{}, fmt.Errorf("parameters: %w", err)
	}
	r.Flushed = st.GetFields()["flushed"].GetBoolValue()
	r.Warning = st.GetFields()["warning"].GetStringValue()
	return r, nil
}

// #endregion record-reply

// #region helpers
func encodeAux(aux map[string]float64) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(aux))
	for k, v := range aux {
		fields[k] = structpb.NewNumberValue(v)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeAux(st *structpb.Struct) (map[string]float64, error) {
	v, ok := st.GetFields()["aux"]
	if !ok {
		return nil, nil
	}
	inner := v.GetStructValue()
	if inner == nil {
		return nil, fmt.Errorf("%w: aux is not an object", ErrMalformed)
	}
	if len(inner.GetFields()) == 0 {
		return nil, nil
	}
	aux := make(map[string]float64, len(inner.GetFields()))
	for k, fv := range inner.GetFields() {
		n, ok := fv.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: aux %q is not a number", ErrMalformed, k)
		}
		aux[k] = n.NumberValue
	}
	return aux, nil
}

func number(st *structpb.Struct, key string, required bool) (float64, error) {
	v, ok := st.GetFields()[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: missing %s", ErrMalformed, key)
		}
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformed, key)
	}
	return n.NumberValue, nil
}

func text(st *structpb.Struct, key string) (string, error) {
	v, ok := st.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformed, key)
	}
	return s.StringValue, nil
}

// object returns the nested struct at key, or an empty one so decoding reports the
// missing fields.
func object(st *structpb.Struct, key string) *structpb.Struct {
	if inner := st.GetFields()[key].GetStructValue(); inner != nil {
		return inner
	}
	return &structpb.Struct{}
}

// #endregion helpers
