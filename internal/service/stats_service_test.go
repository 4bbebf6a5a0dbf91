package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

type memoryCache struct {
	entries map[string]dto.SchoolStatsResponse
	hits    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]dto.SchoolStatsResponse)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	entry, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	*dest.(*dto.SchoolStatsResponse) = entry
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.sets++
	c.entries[key] = *value.(*dto.SchoolStatsResponse)
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

type stubStatsStores struct {
	pending          int
	approved         int
	documented       int
	activityPoints   float64
	submissionPoints float64
	computations     int
}

func (s *stubStatsStores) CountByStatus(_ context.Context, _ string, statuses []workflow.Status) (int, error) {
	s.computations++
	if len(statuses) > 0 && statuses[0] == workflow.StatusEntityApproved {
		return s.approved, nil
	}
	return s.pending, nil
}

func (s *stubStatsStores) CountActivityByStatus(_ context.Context, _ string, _ models.ActivityStatus) (int, error) {
	return s.documented, nil
}

func (s *stubStatsStores) SumDocumentedPoints(_ context.Context, _ string) (float64, error) {
	return s.activityPoints, nil
}

func (s *stubStatsStores) SumApprovedPoints(_ context.Context, _ string) (float64, error) {
	return s.submissionPoints, nil
}

func (s *stubStatsStores) CountApproved(_ context.Context, _ string) (int, error) {
	return 0, nil
}

// activityView adapts stubStatsStores to the activity aggregation surface.
type activityView struct{ s *stubStatsStores }

func (v activityView) CountByStatus(ctx context.Context, schoolID string, status models.ActivityStatus) (int, error) {
	return v.s.CountActivityByStatus(ctx, schoolID, status)
}

func (v activityView) SumDocumentedPoints(ctx context.Context, schoolID string) (float64, error) {
	return v.s.SumDocumentedPoints(ctx, schoolID)
}

func newStatsService(stores *stubStatsStores, cache StatsCache) *StatsService {
	return NewStatsService(stores, activityView{stores}, stores, cache, time.Minute, zap.NewNop())
}

func TestSchoolStatsAggregation(t *testing.T) {
	stores := &stubStatsStores{
		pending:          2,
		approved:         3,
		documented:       4,
		activityPoints:   120.5,
		submissionPoints: 80,
	}
	svc := newStatsService(stores, newMemoryCache())

	stats, cached, err := svc.SchoolStats(context.Background(), schoolClaims(), "school-1")
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, stats.PendingRequests)
	require.Equal(t, 3, stats.ApprovedRequests)
	require.Equal(t, 4, stats.DocumentedActivities)
	require.Equal(t, 200.5, stats.TotalPoints)
}

func TestSchoolStatsReadThroughCache(t *testing.T) {
	stores := &stubStatsStores{pending: 1}
	cache := newMemoryCache()
	svc := newStatsService(stores, cache)
	ctx := context.Background()

	first, cached, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)
	require.False(t, cached)
	firstComputations := stores.computations

	second, cached, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, firstComputations, stores.computations, "cached read must not hit the stores")
	require.Equal(t, first.PendingRequests, second.PendingRequests)
	require.Equal(t, first.TotalPoints, second.TotalPoints)
}

func TestSchoolStatsIdempotentOverUnchangedStores(t *testing.T) {
	stores := &stubStatsStores{pending: 5, submissionPoints: 42}
	svc := newStatsService(stores, nil)
	ctx := context.Background()

	first, _, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)
	second, _, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)

	require.Equal(t, first.PendingRequests, second.PendingRequests)
	require.Equal(t, first.SubmissionPoints, second.SubmissionPoints)
	require.Equal(t, first.TotalPoints, second.TotalPoints)
}

func TestSchoolStatsForeignSchoolForbidden(t *testing.T) {
	svc := newStatsService(&stubStatsStores{}, nil)

	_, _, err := svc.SchoolStats(context.Background(), schoolClaims(), "school-9")
	requireCode(t, err, "FORBIDDEN")
}

func TestSchoolStatsInvalidateDropsEntry(t *testing.T) {
	stores := &stubStatsStores{pending: 1}
	cache := newMemoryCache()
	svc := newStatsService(stores, cache)
	ctx := context.Background()

	_, _, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)

	svc.Invalidate(ctx, "school-1")

	_, cached, err := svc.SchoolStats(ctx, schoolClaims(), "school-1")
	require.NoError(t, err)
	require.False(t, cached)
}
