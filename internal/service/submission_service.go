package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// SubmissionStore is the submission persistence surface the service needs.
type SubmissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	Review(ctx context.Context, id string, status models.SubmissionStatus, reviewerID string, note *string) error
}

// SubmissionService handles challenge submissions and their central review.
// Approval is the only path that makes a submission point-bearing.
type SubmissionService struct {
	store  SubmissionStore
	audit  AuditWriter
	stats  StatsInvalidator
	logger *zap.Logger
}

func NewSubmissionService(store SubmissionStore, audit AuditWriter, stats StatsInvalidator, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{store: store, audit: audit, stats: stats, logger: logger}
}

// Create enters the caller's school into a challenge.
func (s *SubmissionService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateSubmissionRequest) (*models.Submission, error) {
	if claims.Role != models.RoleSchool || claims.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school coordinators may submit entries")
	}
	submission := &models.Submission{
		SchoolID:     claims.SchoolID,
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
		Participants: req.Participants,
		Status:       models.SubmissionSubmitted,
		SubmittedBy:  claims.UserID,
	}
	if err := s.store.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to create submission")
	}
	return submission, nil
}

// List returns submissions scoped to the caller.
func (s *SubmissionService) List(ctx context.Context, claims *models.JWTClaims, query dto.SubmissionQuery) ([]models.Submission, error) {
	filter := models.SubmissionFilter{Status: query.Status, Limit: query.Limit, Offset: query.Offset}
	switch claims.Role {
	case models.RoleSchool:
		filter.SchoolID = claims.SchoolID
	case models.RoleAdmin, models.RoleSuperAdmin:
		filter.SchoolID = query.SchoolID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not list submissions")
	}
	submissions, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list submissions")
	}
	return submissions, nil
}

// Review settles a submission. The guarded update ensures exactly one
// reviewer wins when two race on the same entry.
func (s *SubmissionService) Review(ctx context.Context, claims *models.JWTClaims, id string, req dto.ReviewSubmissionRequest) (*models.Submission, error) {
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may review submissions")
	}
	if req.Status != models.SubmissionApproved && req.Status != models.SubmissionRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("review status must be %s or %s", models.SubmissionApproved, models.SubmissionRejected))
	}

	submission, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load submission")
	}
	if submission.Status != models.SubmissionSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("submission already reviewed as %s", submission.Status))
	}

	var note *string
	if req.Note != "" {
		note = &req.Note
	}
	if err := s.store.Review(ctx, id, req.Status, claims.UserID, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to review submission")
	}

	if s.audit != nil {
		reviewerID := claims.UserID
		entry := &models.AuditLog{
			UserID:     &reviewerID,
			Action:     models.AuditActionSubmissionReview,
			Resource:   "submission",
			ResourceID: &id,
			NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, req.Status)),
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Sugar().Warnw("audit write failed", "submission_id", id, "error", err)
		}
	}
	if req.Status == models.SubmissionApproved && s.stats != nil {
		s.stats.Invalidate(ctx, submission.SchoolID)
	}

	return s.store.GetByID(ctx, id)
}
