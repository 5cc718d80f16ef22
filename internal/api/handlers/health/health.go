package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"allergen-engine/internal/core/ai/cache"
	"allergen-engine/internal/core/ai/queue"
	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	AI        bool                   `json:"ai_enabled"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     *cache.Stats           `json:"cache,omitempty"`
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler reports process health. Every dependency is optional.
type Handler struct {
	Version string
	Queue   *queue.Manager
	Cache   cache.Store
	Storage Pinger
}

// HealthCheck reports the version, runtime numbers and AI queue and cache occupancy.
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.Version,
		AI:        h.Queue != nil,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.Queue != nil {
		response.Queue = h.Queue.GetQueueStatus()
	}
	if mgr, ok := h.Cache.(*cache.CacheManager); ok {
		stats := mgr.GetStats()
		response.Cache = &stats
	}

	common.LogDebug("health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck fails with 503 while storage is unreachable.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.Storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Storage.Ping(ctx); err != nil {
			common.LogWarn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck always succeeds while the process serves requests.
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
