package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// statsCacheKeyPrefix namespaces school stat entries in Redis.
const statsCacheKeyPrefix = "stats:school:"

// pendingStatuses are the request states counted as "awaiting an answer"
// from the school's point of view.
var pendingStatuses = []workflow.Status{
	workflow.StatusSent,
	workflow.StatusPending,
	workflow.StatusInProgress,
}

// StatsCache is the read-through cache surface.
type StatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RequestCounter counts a school's requests by status.
type RequestCounter interface {
	CountByStatus(ctx context.Context, schoolID string, statuses []workflow.Status) (int, error)
}

// ActivityAggregator exposes the activity-side aggregation queries.
type ActivityAggregator interface {
	CountByStatus(ctx context.Context, schoolID string, status models.ActivityStatus) (int, error)
	SumDocumentedPoints(ctx context.Context, schoolID string) (float64, error)
}

// SubmissionAggregator exposes the submission-side aggregation queries.
type SubmissionAggregator interface {
	SumApprovedPoints(ctx context.Context, schoolID string) (float64, error)
	CountApproved(ctx context.Context, schoolID string) (int, error)
}

// StatsService aggregates a school's dashboard counters. Points only come
// from approved submissions and documented activities, never from the
// request workflow itself, so recomputing over unchanged stores always
// yields the same numbers.
type StatsService struct {
	requests    RequestCounter
	activities  ActivityAggregator
	submissions SubmissionAggregator
	cache       StatsCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewStatsService(
	requests RequestCounter,
	activities ActivityAggregator,
	submissions SubmissionAggregator,
	cache StatsCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{
		requests:    requests,
		activities:  activities,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// SchoolStats returns the school dashboard, read through the cache. The
// second return reports whether the cache served the response.
func (s *StatsService) SchoolStats(ctx context.Context, claims *models.JWTClaims, schoolID string) (*dto.SchoolStatsResponse, bool, error) {
	if claims.Role == models.RoleSchool {
		if claims.SchoolID == "" || claims.SchoolID != schoolID {
			return nil, false, appErrors.Clone(appErrors.ErrForbidden, "stats belong to another school")
		}
	} else if claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "role may not read school stats")
	}

	key := statsCacheKeyPrefix + schoolID
	if s.cache != nil {
		var cached dto.SchoolStatsResponse
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("stats cache read failed", "school_id", schoolID, "error", err)
		}
	}

	stats, err := s.compute(ctx, schoolID)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("stats cache write failed", "school_id", schoolID, "error", err)
		}
	}
	return stats, false, nil
}

// Invalidate drops the cached entry after a point-bearing write.
func (s *StatsService) Invalidate(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKeyPrefix+schoolID); err != nil {
		s.logger.Sugar().Warnw("stats cache invalidation failed", "school_id", schoolID, "error", err)
	}
}

func (s *StatsService) compute(ctx context.Context, schoolID string) (*dto.SchoolStatsResponse, error) {
	pending, err := s.requests.CountByStatus(ctx, schoolID, pendingStatuses)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to count pending requests")
	}
	approved, err := s.requests.CountByStatus(ctx, schoolID, []workflow.Status{workflow.StatusEntityApproved, workflow.StatusCompleted})
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to count approved requests")
	}
	documented, err := s.activities.CountByStatus(ctx, schoolID, models.ActivityDocumented)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to count documented activities")
	}
	activityPoints, err := s.activities.SumDocumentedPoints(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to sum activity points")
	}
	submissionPoints, err := s.submissions.SumApprovedPoints(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to sum submission points")
	}

	return &dto.SchoolStatsResponse{
		SchoolID:             schoolID,
		PendingRequests:      pending,
		ApprovedRequests:     approved,
		DocumentedActivities: documented,
		SubmissionPoints:     submissionPoints,
		ActivityPoints:       activityPoints,
		TotalPoints:          submissionPoints + activityPoints,
		GeneratedAt:          time.Now().UTC(),
	}, nil
}
