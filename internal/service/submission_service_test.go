package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
)

type stubSubmissionStore struct {
	submissions map[string]*models.Submission
}

func newStubSubmissionStore(submissions ...*models.Submission) *stubSubmissionStore {
	store := &stubSubmissionStore{submissions: make(map[string]*models.Submission)}
	for _, submission := range submissions {
		store.submissions[submission.ID] = submission
	}
	return store
}

func (s *stubSubmissionStore) Create(_ context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = "sub-generated"
	}
	s.submissions[submission.ID] = submission
	return nil
}

func (s *stubSubmissionStore) GetByID(_ context.Context, id string) (*models.Submission, error) {
	submission, ok := s.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *submission
	return &copied, nil
}

func (s *stubSubmissionStore) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var out []models.Submission
	for _, submission := range s.submissions {
		if filter.SchoolID != "" && submission.SchoolID != filter.SchoolID {
			continue
		}
		out = append(out, *submission)
	}
	return out, nil
}

func (s *stubSubmissionStore) Review(_ context.Context, id string, status models.SubmissionStatus, reviewerID string, note *string) error {
	submission, ok := s.submissions[id]
	if !ok || submission.Status != models.SubmissionSubmitted {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	submission.Status = status
	submission.ReviewedBy = &reviewerID
	submission.ReviewedAt = &now
	submission.ReviewNote = note
	return nil
}

func submittedEntry() *models.Submission {
	return &models.Submission{
		ID:           "sub-1",
		SchoolID:     "school-1",
		CategoryID:   "cat-1",
		Title:        "Plastic-free week",
		Participants: 200,
		Status:       models.SubmissionSubmitted,
		SubmittedBy:  "user-1",
	}
}

func TestSubmissionReviewApproveInvalidatesStats(t *testing.T) {
	store := newStubSubmissionStore(submittedEntry())
	audit := &stubAudit{}
	stats := &stubInvalidator{}
	svc := NewSubmissionService(store, audit, stats, zap.NewNop())

	reviewed, err := svc.Review(context.Background(), adminClaims(), "sub-1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionApproved,
		Note:   "well documented",
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, "admin-1", *reviewed.ReviewedBy)
	require.Equal(t, []string{"school-1"}, stats.invalidated)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.AuditActionSubmissionReview, audit.entries[0].Action)
}

func TestSubmissionReviewRejectSkipsStats(t *testing.T) {
	store := newStubSubmissionStore(submittedEntry())
	stats := &stubInvalidator{}
	svc := NewSubmissionService(store, nil, stats, zap.NewNop())

	reviewed, err := svc.Review(context.Background(), adminClaims(), "sub-1", dto.ReviewSubmissionRequest{
		Status: models.SubmissionRejected,
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionRejected, reviewed.Status)
	require.Empty(t, stats.invalidated)
}

func TestSubmissionReviewTwiceConflicts(t *testing.T) {
	store := newStubSubmissionStore(submittedEntry())
	svc := NewSubmissionService(store, nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Review(ctx, adminClaims(), "sub-1", dto.ReviewSubmissionRequest{Status: models.SubmissionApproved})
	require.NoError(t, err)

	_, err = svc.Review(ctx, adminClaims(), "sub-1", dto.ReviewSubmissionRequest{Status: models.SubmissionRejected})
	requireCode(t, err, "INVALID_TRANSITION")
}

func TestSubmissionReviewRequiresAdmin(t *testing.T) {
	store := newStubSubmissionStore(submittedEntry())
	svc := NewSubmissionService(store, nil, nil, zap.NewNop())

	_, err := svc.Review(context.Background(), schoolClaims(), "sub-1", dto.ReviewSubmissionRequest{Status: models.SubmissionApproved})
	requireCode(t, err, "FORBIDDEN")
}

func TestSubmissionCreateScopedToSchool(t *testing.T) {
	store := newStubSubmissionStore()
	svc := NewSubmissionService(store, nil, nil, zap.NewNop())

	submission, err := svc.Create(context.Background(), schoolClaims(), dto.CreateSubmissionRequest{
		CategoryID:   "cat-1",
		Title:        "Plastic-free week",
		Participants: 200,
	})
	require.NoError(t, err)
	require.Equal(t, "school-1", submission.SchoolID)
	require.Equal(t, models.SubmissionSubmitted, submission.Status)
}
