package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// ActivityStore is the activity persistence surface the service needs.
type ActivityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	GetByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ActivityStatus, documentedAt *time.Time) error
	UpdateParticipants(ctx context.Context, id string, participants int) error
	GetCategory(ctx context.Context, id string) (*models.PointCategory, error)
	ListCategories(ctx context.Context) ([]models.PointCategory, error)
}

// StatsInvalidator drops cached school stats after point-bearing writes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, schoolID string)
}

// ActivityService manages the internal activity lifecycle. Unlike the
// request workflow there is a single acting party, so the lifecycle is a
// fixed PLANNED, HELD, DOCUMENTED chain with cancellation from the two
// non-terminal states.
type ActivityService struct {
	store  ActivityStore
	stats  StatsInvalidator
	logger *zap.Logger
}

func NewActivityService(store ActivityStore, stats StatsInvalidator, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{store: store, stats: stats, logger: logger}
}

// Create plans a new activity for the caller's school.
func (s *ActivityService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateActivityRequest) (*models.Activity, error) {
	if claims.Role != models.RoleSchool || claims.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school coordinators may plan activities")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if _, err := s.store.GetCategory(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category: %s", req.CategoryID))
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load category")
	}

	activity := &models.Activity{
		SchoolID:   claims.SchoolID,
		CreatedBy:  claims.UserID,
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Date:       date,
		Location:   req.Location,
		Status:     models.ActivityPlanned,
	}
	if err := s.store.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to create activity")
	}
	return activity, nil
}

// List returns activities scoped to the caller.
func (s *ActivityService) List(ctx context.Context, claims *models.JWTClaims, query dto.ActivityQuery) ([]models.Activity, error) {
	filter := models.ActivityFilter{Status: query.Status, Limit: query.Limit, Offset: query.Offset}
	switch claims.Role {
	case models.RoleSchool:
		filter.SchoolID = claims.SchoolID
	case models.RoleAdmin, models.RoleSuperAdmin:
		filter.SchoolID = query.SchoolID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not list activities")
	}
	activities, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list activities")
	}
	return activities, nil
}

// MarkHeld moves a planned activity to held.
func (s *ActivityService) MarkHeld(ctx context.Context, claims *models.JWTClaims, id string) (*models.Activity, error) {
	return s.advance(ctx, claims, id, models.ActivityPlanned, models.ActivityHeld, nil, 0)
}

// Document closes a held activity with its final participant count. Only
// this step makes the activity point-bearing, so the school's cached stats
// are invalidated afterwards.
func (s *ActivityService) Document(ctx context.Context, claims *models.JWTClaims, id string, req dto.DocumentActivityRequest) (*models.Activity, error) {
	now := time.Now().UTC()
	return s.advance(ctx, claims, id, models.ActivityHeld, models.ActivityDocumented, &now, req.Participants)
}

// Cancel drops an activity that has not been documented.
func (s *ActivityService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*models.Activity, error) {
	activity, err := s.load(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if activity.Status != models.ActivityPlanned && activity.Status != models.ActivityHeld {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot cancel an activity in status %s", activity.Status))
	}
	if err := s.store.UpdateStatus(ctx, id, activity.Status, models.ActivityCancelled, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to cancel activity")
	}
	return s.store.GetByID(ctx, id)
}

// Categories lists the point categories schools score against.
func (s *ActivityService) Categories(ctx context.Context) ([]models.PointCategory, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list categories")
	}
	return categories, nil
}

func (s *ActivityService) advance(ctx context.Context, claims *models.JWTClaims, id string, from, to models.ActivityStatus, documentedAt *time.Time, participants int) (*models.Activity, error) {
	activity, err := s.load(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if activity.Status != from {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("activity must be %s, is %s", from, activity.Status))
	}
	if to == models.ActivityDocumented && participants <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participants must be positive to document an activity")
	}
	if err := s.store.UpdateStatus(ctx, id, from, to, documentedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to update activity")
	}
	if to == models.ActivityDocumented {
		if err := s.store.UpdateParticipants(ctx, id, participants); err != nil {
			s.logger.Sugar().Warnw("failed to record participants", "activity_id", id, "error", err)
		}
		if s.stats != nil {
			s.stats.Invalidate(ctx, activity.SchoolID)
		}
	}
	return s.store.GetByID(ctx, id)
}

func (s *ActivityService) load(ctx context.Context, claims *models.JWTClaims, id string) (*models.Activity, error) {
	if claims.Role != models.RoleSchool || claims.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school coordinators may manage activities")
	}
	activity, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load activity")
	}
	if activity.SchoolID != claims.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "activity belongs to another school")
	}
	return activity, nil
}
