package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onlythejoe/void-engine/internal/metrics"
)

// #region routes
// RegisterRoutes mounts the status API on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/analytics", h.HandleAnalytics)
	rg.GET("/parameters", h.HandleParameters)
	rg.GET("/snapshots", h.HandleSnapshots)
	rg.POST("/flush", h.HandleFlush)
}

// NewRouter builds the HTTP surface: /healthz, /metrics from g and the /v1 status API.
func NewRouter(e Engine, g prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if logger != nil {
		router.Use(requestLogger(logger))
	}

	h := NewHandlers(e)
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler(g)))
	RegisterRoutes(router.Group("/v1"), h)
	return router
}

// #endregion routes

// #region middleware
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// #endregion middleware
