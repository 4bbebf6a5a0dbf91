package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eco-coord-api/internal/service"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// MetricsHandler serves the in-process metrics snapshot.
type MetricsHandler struct {
	metrics *service.MetricsService
}

func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot godoc
// @Summary System metrics snapshot
// @Tags admin
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.SystemMetrics}
// @Security BearerAuth
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
