package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlythejoe/void-engine/internal/engine"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/metrics"
	"github.com/onlythejoe/void-engine/internal/persist"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// #region helpers
func setupTestRouter(t *testing.T, statePath string, coherence ...float64) (*gin.Engine, *engine.Engine) {
	t.Helper()
	field, err := memory.NewField(4)
	require.NoError(t, err)
	if statePath == "" {
		statePath = filepath.Join(t.TempDir(), "field.json")
	}
	reg := prometheus.NewRegistry()
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	e, err := engine.New(field, persist.NewWriter(statePath), engine.Options{
		Metrics: metrics.New(reg),
		Clock: func() time.Time {
			n++
			return t0.Add(time.Duration(n) * time.Second)
		},
	})
	require.NoError(t, err)
	for _, c := range coherence {
		_, err := e.Tick(context.Background(), memory.Reading{Coherence: c, Entropy: 0.5})
		require.NoError(t, err)
	}
	return NewRouter(e, reg, nil), e
}

func do(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// #endregion helpers

func TestHandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t, "", 0.5)

	w := do(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Len: 1, Capacity: 4}, resp)
}

func TestHandleAnalytics(t *testing.T) {
	router, _ := setupTestRouter(t, "", 0.2, 0.8)

	w := do(router, http.MethodGet, "/v1/analytics")
	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalyticsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Samples)
	assert.InDelta(t, 0.6, resp.CoherenceTrend, 1e-12)
	assert.Equal(t, 1.0, resp.SpanSeconds)
}

func TestHandleParameters(t *testing.T) {
	router, e := setupTestRouter(t, "", 0.2, 0.8)

	w := do(router, http.MethodGet, "/v1/parameters")
	require.Equal(t, http.StatusOK, w.Code)

	var resp feedback.Parameters
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, e.Parameters(), resp)
}

func TestHandleSnapshots(t *testing.T) {
	router, _ := setupTestRouter(t, "", 0.1, 0.2, 0.3)

	w := do(router, http.MethodGet, "/v1/snapshots?last=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SnapshotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Capacity)
	require.Len(t, resp.Snapshots, 2)
	assert.Equal(t, 0.2, resp.Snapshots[0].Coherence)
	assert.Equal(t, 0.3, resp.Snapshots[1].Coherence)
}

func TestHandleSnapshots_Empty(t *testing.T) {
	router, _ := setupTestRouter(t, "")

	w := do(router, http.MethodGet, "/v1/snapshots")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"snapshots":[]`)
}

func TestHandleSnapshots_BadLast(t *testing.T) {
	router, _ := setupTestRouter(t, "")

	w := do(router, http.MethodGet, "/v1/snapshots?last=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.json")
	router, _ := setupTestRouter(t, path, 0.4)

	w := do(router, http.MethodPost, "/v1/flush")
	require.Equal(t, http.StatusNoContent, w.Code)

	loaded, err := persist.Load(path, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestHandleFlush_Unavailable(t *testing.T) {
	router, _ := setupTestRouter(t, filepath.Join(t.TempDir(), "missing", "field.json"))

	w := do(router, http.MethodPost, "/v1/flush")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	router, _ := setupTestRouter(t, "", 0.5)

	w := do(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "void_engine_memory_len 1"))
}
