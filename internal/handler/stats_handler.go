package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/service"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// StatsOperations is the stats service surface the handler calls.
type StatsOperations interface {
	SchoolStats(ctx context.Context, claims *models.JWTClaims, schoolID string) (*dto.SchoolStatsResponse, bool, error)
}

// StatsHandler serves aggregation endpoints.
type StatsHandler struct {
	service StatsOperations
	metrics *service.MetricsService
}

func NewStatsHandler(statsService StatsOperations, metrics *service.MetricsService) *StatsHandler {
	return &StatsHandler{service: statsService, metrics: metrics}
}

// SchoolStats godoc
// @Summary School dashboard counters and points
// @Tags stats
// @Produce json
// @Param id path string true "school id"
// @Success 200 {object} response.Envelope{data=dto.SchoolStatsResponse}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/stats [get]
func (h *StatsHandler) SchoolStats(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, cached, err := h.service.SchoolStats(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		if cached {
			h.metrics.RecordCacheHit()
		} else {
			h.metrics.RecordCacheMiss()
		}
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cache_hit": cached})
}
