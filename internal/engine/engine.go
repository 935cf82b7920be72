package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/archive"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/logging"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/metrics"
	"github.com/onlythejoe/void-engine/internal/persist"
)

const tracerName = "github.com/onlythejoe/void-engine/internal/engine"

// finalFlushTimeout bounds the flush Run performs after its context ends.
const finalFlushTimeout = 5 * time.Second

// #region engine-struct
// Engine is the single owner of a memory field. Ticks are serialised; flushes and
// reads may run alongside them.
type Engine struct {
	field    *memory.Field
	recorder *memory.Recorder
	writer   *persist.Writer
	deriver  *feedback.Deriver

	archive    Archive
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	flushEvery int

	mu      sync.Mutex
	tick    uint64
	evicted []memory.Snapshot

	flushMu sync.Mutex
}

// #endregion engine-struct

// #region constructor
// New wires an engine around field, flushing through writer.
func New(field *memory.Field, writer *persist.Writer, opts Options) (*Engine, error) {
	if field == nil {
		return nil, fmt.Errorf("%w: engine needs a field", memory.ErrConfiguration)
	}
	if writer == nil {
		return nil, fmt.Errorf("%w: engine needs a writer", memory.ErrConfiguration)
	}
	if opts.FlushEvery < 0 {
		return nil, fmt.Errorf("%w: flush every must not be negative, got %d", memory.ErrConfiguration, opts.FlushEvery)
	}
	if opts.Feedback == (feedback.Config{}) {
		opts.Feedback = feedback.DefaultConfig()
	}
	deriver, err := feedback.NewDeriver(opts.Feedback)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	e := &Engine{
		field:      field,
		writer:     writer,
		deriver:    deriver,
		archive:    opts.Archive,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		tracer:     otel.Tracer(tracerName),
		flushEvery: opts.FlushEvery,
	}

	recOpts := []memory.RecorderOption{memory.WithEvictHook(e.onEvict)}
	if opts.Clock != nil {
		recOpts = append(recOpts, memory.WithClock(opts.Clock))
	}
	e.recorder = memory.NewRecorder(field, recOpts...)
	e.metrics.ObserveField(field.Len(), field.Cap())
	return e, nil
}

// onEvict runs inside Record, which only record calls while holding e.mu.
func (e *Engine) onEvict(s memory.Snapshot) {
	e.evicted = append(e.evicted, s)
}

// #endregion constructor

// #region tick
// Tick records one reading and refreshes analytics and parameters. A rejected reading
// leaves the field untouched. Archive and flush failures are returned alongside a
// valid result: the reading is already in the field when they happen. A cadence
// flush runs after the tick lock is released, so other ticks never wait on disk.
func (e *Engine) Tick(ctx context.Context, reading memory.Reading) (TickResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Tick")
	defer span.End()

	result, errs, err := e.record(ctx, reading)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return TickResult{}, err
	}

	if e.flushEvery > 0 && result.Tick%uint64(e.flushEvery) == 0 {
		if err := e.Flush(ctx); err != nil {
			errs = append(errs, err)
		} else {
			result.Flushed = true
		}
	}

	span.SetAttributes(
		attribute.Int64("void.tick", int64(result.Tick)),
		attribute.Int("void.samples", result.Analytics.Samples),
		attribute.Float64("void.decay_rate", result.Parameters.DecayRate),
		attribute.Float64("void.phase_rate", result.Parameters.PhaseRate),
	)
	err = errors.Join(errs...)
	if err != nil {
		e.logger.Error("tick completed with errors", "tick", result.Tick, "error", err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// record is the serialised part of a tick. Side-effect failures come back in errs;
// err is set only when the reading was rejected.
func (e *Engine) record(ctx context.Context, reading memory.Reading) (result TickResult, errs []error, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.recorder.Record(reading)
	if err != nil {
		e.metrics.ObserveRecord(false, false)
		e.logger.Warn("reading rejected", "error", err)
		return TickResult{}, nil, err
	}
	evicted := e.evicted
	e.evicted = nil
	e.tick++
	e.metrics.ObserveRecord(true, len(evicted) > 0)

	if e.archive != nil {
		for _, s := range evicted {
			if _, err := e.archive.ArchiveSnapshot(ctx, s); err != nil {
				errs = append(errs, fmt.Errorf("archive evicted snapshot: %w", err))
			}
		}
	}

	rolling := analytics.Analyze(e.field)
	params := e.deriver.Derive(rolling)
	e.metrics.ObserveField(e.field.Len(), e.field.Cap())
	e.metrics.ObserveFeedback(rolling.CoherenceTrend, rolling.EntropyTrend, params.DecayRate, params.PhaseRate)

	if e.archive != nil {
		err := e.archive.LogDerivation(ctx, logging.DerivationEntry{
			Tick:           e.tick,
			TriggerType:    "tick",
			Samples:        rolling.Samples,
			CoherenceTrend: rolling.CoherenceTrend,
			EntropyTrend:   rolling.EntropyTrend,
			DecayRate:      params.DecayRate,
			PhaseRate:      params.PhaseRate,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("log derivation: %w", err))
		}
	}

	return TickResult{
		Tick:       e.tick,
		Snapshot:   snap,
		Evicted:    len(evicted),
		Analytics:  rolling,
		Parameters: params,
	}, errs, nil
}

// #endregion tick

// #region flush
// Flush persists the current field. The live field is never modified by a flush,
// successful or not.
func (e *Engine) Flush(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.Flush")
	defer span.End()

	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	start := time.Now()
	count, err := e.writer.Flush(ctx, e.field)
	elapsed := time.Since(start)
	e.metrics.ObserveFlush(err, elapsed)

	rec := archive.FlushRecord{
		Path:          e.writer.Path(),
		SnapshotCount: count,
		Outcome:       "ok",
		Duration:      elapsed,
	}
	if err != nil {
		rec.Outcome = "error"
		rec.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("flush failed", "path", e.writer.Path(), "error", err)
	} else {
		e.logger.Debug("flushed", "path", e.writer.Path(), "snapshots", count, "elapsed", elapsed)
	}

	if e.archive != nil {
		// the flush log is written even when the caller's context is already done
		if logErr := e.archive.LogFlush(context.WithoutCancel(ctx), rec); logErr != nil {
			err = errors.Join(err, fmt.Errorf("log flush: %w", logErr))
		}
	}
	return err
}

// #endregion flush

// #region run
// Run flushes every interval until ctx ends, then performs one last flush.
// A non-positive interval only flushes on shutdown.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			defer cancel()
			if err := e.Flush(finalCtx); err != nil {
				return fmt.Errorf("final flush: %w", err)
			}
			e.logger.Info("memory field persisted on shutdown", "path", e.writer.Path(), "snapshots", e.field.Len())
			return nil
		case <-tick:
			// errors are already logged and counted by Flush; keep the loop alive
			_ = e.Flush(ctx)
		}
	}
}

// #endregion run

// #region read
// Analyze returns rolling analytics over the current field.
func (e *Engine) Analyze() analytics.Rolling {
	return analytics.Analyze(e.field)
}

// Parameters derives control parameters from the current field.
func (e *Engine) Parameters() feedback.Parameters {
	return e.deriver.Derive(e.Analyze())
}

// Snapshots lists the retained snapshots oldest first.
func (e *Engine) Snapshots() iter.Seq[memory.Snapshot] {
	return e.field.Snapshots()
}

// Field exposes the owned field for read-side collaborators.
func (e *Engine) Field() *memory.Field {
	return e.field
}

// Ticks returns how many readings have been accepted.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// #endregion read
