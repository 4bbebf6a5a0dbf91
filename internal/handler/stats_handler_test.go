package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/service"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

type stubStatsService struct {
	stats  *dto.SchoolStatsResponse
	cached bool
	err    error
}

func (s *stubStatsService) SchoolStats(_ context.Context, _ *models.JWTClaims, schoolID string) (*dto.SchoolStatsResponse, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.stats, s.cached, nil
}

func statsRouter(stub *stubStatsService, claims *models.JWTClaims) (*gin.Engine, *service.MetricsService) {
	metrics := service.NewMetricsService()
	handler := NewStatsHandler(stub, metrics)
	router := gin.New()
	router.GET("/schools/:id/stats", withClaims(claims), handler.SchoolStats)
	return router, metrics
}

func TestStatsHandlerReportsCacheMeta(t *testing.T) {
	stub := &stubStatsService{
		stats:  &dto.SchoolStatsResponse{SchoolID: "school-1", TotalPoints: 42, GeneratedAt: time.Now().UTC()},
		cached: true,
	}
	router, metrics := statsRouter(stub, schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/schools/school-1/stats", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"cache_hit":true`)
	require.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestStatsHandlerForbiddenPassesThrough(t *testing.T) {
	stub := &stubStatsService{err: appErrors.ErrForbidden}
	router, _ := statsRouter(stub, schoolTestClaims())

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/schools/school-9/stats", nil)
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusForbidden, recorder.Code)
}
