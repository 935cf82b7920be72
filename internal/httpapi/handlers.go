package httpapi

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/persist"
)

// #region types
// Engine is the read side of the memory field plus an on-demand flush.
// *engine.Engine satisfies it.
type Engine interface {
	Analyze() analytics.Rolling
	Parameters() feedback.Parameters
	Snapshots() iter.Seq[memory.Snapshot]
	Field() *memory.Field
	Flush(ctx context.Context) error
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
}

// AnalyticsResponse is returned by GET /v1/analytics.
type AnalyticsResponse struct {
	Samples        int     `json:"samples"`
	CoherenceTrend float64 `json:"coherence_trend"`
	EntropyTrend   float64 `json:"entropy_trend"`
	EnergyTrend    float64 `json:"energy_trend"`
	CoherenceMean  float64 `json:"coherence_mean"`
	EntropyMean    float64 `json:"entropy_mean"`
	SpanSeconds    float64 `json:"span_seconds"`
}

// SnapshotResponse is one element of GET /v1/snapshots.
type SnapshotResponse struct {
	Timestamp time.Time          `json:"timestamp"`
	Coherence float64            `json:"coherence"`
	Entropy   float64            `json:"entropy"`
	Energy    float64            `json:"energy"`
	Aux       map[string]float64 `json:"aux,omitempty"`
}

// SnapshotsResponse is returned by GET /v1/snapshots.
type SnapshotsResponse struct {
	Capacity  int                `json:"capacity"`
	Snapshots []SnapshotResponse `json:"snapshots"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// #endregion types

// #region handlers
// Handlers serves the status API over one engine.
type Handlers struct {
	engine Engine
}

// NewHandlers creates handlers over e.
func NewHandlers(e Engine) *Handlers {
	return &Handlers{engine: e}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	field := h.engine.Field()
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Len: field.Len(), Capacity: field.Cap()})
}

// HandleAnalytics handles GET /v1/analytics.
func (h *Handlers) HandleAnalytics(c *gin.Context) {
	r := h.engine.Analyze()
	c.JSON(http.StatusOK, AnalyticsResponse{
		Samples:        r.Samples,
		CoherenceTrend: r.CoherenceTrend,
		EntropyTrend:   r.EntropyTrend,
		EnergyTrend:    r.EnergyTrend,
		CoherenceMean:  r.CoherenceMean,
		EntropyMean:    r.EntropyMean,
		SpanSeconds:    r.Span.Seconds(),
	})
}

// HandleParameters handles GET /v1/parameters.
func (h *Handlers) HandleParameters(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Parameters())
}

// HandleSnapshots handles GET /v1/snapshots. The optional last query parameter
// keeps only the newest N snapshots.
func (h *Handlers) HandleSnapshots(c *gin.Context) {
	last := 0
	if raw := c.Query("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "last must be a non-negative integer"})
			return
		}
		last = n
	}

	out := SnapshotsResponse{Capacity: h.engine.Field().Cap(), Snapshots: []SnapshotResponse{}}
	for s := range h.engine.Snapshots() {
		out.Snapshots = append(out.Snapshots, SnapshotResponse(s))
	}
	if last > 0 && len(out.Snapshots) > last {
		out.Snapshots = out.Snapshots[len(out.Snapshots)-last:]
	}
	c.JSON(http.StatusOK, out)
}

// HandleFlush handles POST /v1/flush.
func (h *Handlers) HandleFlush(c *gin.Context) {
	if err := h.engine.Flush(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		var ioErr *persist.IOError
		if errors.As(err, &ioErr) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// #endregion handlers
