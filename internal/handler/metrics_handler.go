package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/service"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type backendStatus interface {
	Status() service.BackendStatus
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	backend backendStatus
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, backend backendStatus) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, backend: backend}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports the last store probe. While the store is down the API still
// serves reads, so the banner travels with the 503.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.backend == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	status := h.backend.Status()
	if !status.Available {
		response.JSON(c, http.StatusServiceUnavailable, status, nil, map[string]interface{}{
			"readOnly": true,
			"banner":   service.OfflineBanner,
		})
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
