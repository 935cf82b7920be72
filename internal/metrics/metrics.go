package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "void_engine"

// Metrics exposes the field's state and the derived control parameters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	memoryLen      prometheus.Gauge
	memoryCapacity prometheus.Gauge
	coherenceTrend prometheus.Gauge
	entropyTrend   prometheus.Gauge
	decayRate      prometheus.Gauge
	phaseRate      prometheus.Gauge
	records        *prometheus.CounterVec
	evictions      prometheus.Counter
	flushes        *prometheus.CounterVec
	flushDuration  prometheus.Histogram
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	return &Metrics{
		memoryLen:      gauge("memory_len", "Snapshots currently retained in the field"),
		memoryCapacity: gauge("memory_capacity", "Fixed capacity of the field"),
		coherenceTrend: gauge("coherence_trend", "Average coherence change per sample over the window"),
		entropyTrend:   gauge("entropy_trend", "Average entropy change per sample over the window"),
		decayRate:      gauge("decay_rate", "Last derived decay rate"),
		phaseRate:      gauge("phase_rate", "Last derived phase rate"),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Readings offered to the recorder by result",
		}, []string{"result"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Snapshots overwritten by newer ones",
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Flush attempts by result",
		}, []string{"result"}),
		flushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing the state file",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
	}
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRecord(ok bool, evicted bool) {
	if m == nil {
		return
	}
	if !ok {
		m.records.WithLabelValues("rejected").Inc()
		return
	}
	m.records.WithLabelValues("ok").Inc()
	if evicted {
		m.evictions.Inc()
	}
}

func (m *Metrics) ObserveField(length, capacity int) {
	if m == nil {
		return
	}
	m.memoryLen.Set(float64(length))
	m.memoryCapacity.Set(float64(capacity))
}

func (m *Metrics) ObserveFeedback(coherenceTrend, entropyTrend, decay, phase float64) {
	if m == nil {
		return
	}
	m.coherenceTrend.Set(coherenceTrend)
	m.entropyTrend.Set(entropyTrend)
	m.decayRate.Set(decay)
	m.phaseRate.Set(phase)
}

func (m *Metrics) ObserveFlush(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.Observe(d.Seconds())
	if err != nil {
		m.flushes.WithLabelValues("error").Inc()
		return
	}
	m.flushes.WithLabelValues("ok").Inc()
}
