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

type stubActivityStore struct {
	activities map[string]*models.Activity
	categories map[string]*models.PointCategory
}

func newStubActivityStore(activities ...*models.Activity) *stubActivityStore {
	store := &stubActivityStore{
		activities: make(map[string]*models.Activity),
		categories: map[string]*models.PointCategory{
			"cat-1": {ID: "cat-1", Name: "Conservation", Multiplier: 2},
		},
	}
	for _, activity := range activities {
		store.activities[activity.ID] = activity
	}
	return store
}

func (s *stubActivityStore) Create(_ context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = "act-generated"
	}
	s.activities[activity.ID] = activity
	return nil
}

func (s *stubActivityStore) GetByID(_ context.Context, id string) (*models.Activity, error) {
	activity, ok := s.activities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *activity
	return &copied, nil
}

func (s *stubActivityStore) List(_ context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	var out []models.Activity
	for _, activity := range s.activities {
		if filter.SchoolID != "" && activity.SchoolID != filter.SchoolID {
			continue
		}
		out = append(out, *activity)
	}
	return out, nil
}

func (s *stubActivityStore) UpdateStatus(_ context.Context, id string, from, to models.ActivityStatus, documentedAt *time.Time) error {
	activity, ok := s.activities[id]
	if !ok || activity.Status != from {
		return sql.ErrNoRows
	}
	activity.Status = to
	if documentedAt != nil {
		activity.DocumentedAt = documentedAt
	}
	return nil
}

func (s *stubActivityStore) UpdateParticipants(_ context.Context, id string, participants int) error {
	if activity, ok := s.activities[id]; ok {
		activity.Participants = participants
	}
	return nil
}

func (s *stubActivityStore) GetCategory(_ context.Context, id string) (*models.PointCategory, error) {
	category, ok := s.categories[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return category, nil
}

func (s *stubActivityStore) ListCategories(_ context.Context) ([]models.PointCategory, error) {
	var out []models.PointCategory
	for _, category := range s.categories {
		out = append(out, *category)
	}
	return out, nil
}

type stubInvalidator struct {
	invalidated []string
}

func (s *stubInvalidator) Invalidate(_ context.Context, schoolID string) {
	s.invalidated = append(s.invalidated, schoolID)
}

func plannedActivity() *models.Activity {
	return &models.Activity{
		ID:         "act-1",
		SchoolID:   "school-1",
		CreatedBy:  "user-1",
		Title:      "Compost workshop",
		CategoryID: "cat-1",
		Status:     models.ActivityPlanned,
	}
}

func TestActivityCreatePlansWithKnownCategory(t *testing.T) {
	store := newStubActivityStore()
	svc := NewActivityService(store, nil, zap.NewNop())

	activity, err := svc.Create(context.Background(), schoolClaims(), dto.CreateActivityRequest{
		Title:      "Compost workshop",
		CategoryID: "cat-1",
		Date:       "2026-10-10",
	})
	require.NoError(t, err)
	require.Equal(t, models.ActivityPlanned, activity.Status)
	require.Equal(t, "school-1", activity.SchoolID)
}

func TestActivityCreateRejectsUnknownCategory(t *testing.T) {
	store := newStubActivityStore()
	svc := NewActivityService(store, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), schoolClaims(), dto.CreateActivityRequest{
		Title:      "Compost workshop",
		CategoryID: "cat-unknown",
		Date:       "2026-10-10",
	})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestActivityDocumentRequiresHeld(t *testing.T) {
	store := newStubActivityStore(plannedActivity())
	svc := NewActivityService(store, nil, zap.NewNop())

	_, err := svc.Document(context.Background(), schoolClaims(), "act-1", dto.DocumentActivityRequest{Participants: 20})
	requireCode(t, err, "INVALID_TRANSITION")
}

func TestActivityFullLifecycleInvalidatesStats(t *testing.T) {
	store := newStubActivityStore(plannedActivity())
	stats := &stubInvalidator{}
	svc := NewActivityService(store, stats, zap.NewNop())
	ctx := context.Background()

	held, err := svc.MarkHeld(ctx, schoolClaims(), "act-1")
	require.NoError(t, err)
	require.Equal(t, models.ActivityHeld, held.Status)

	documented, err := svc.Document(ctx, schoolClaims(), "act-1", dto.DocumentActivityRequest{Participants: 35})
	require.NoError(t, err)
	require.Equal(t, models.ActivityDocumented, documented.Status)
	require.Equal(t, 35, documented.Participants)
	require.NotNil(t, documented.DocumentedAt)
	require.Equal(t, []string{"school-1"}, stats.invalidated)
}

func TestActivityCancelDocumentedRejected(t *testing.T) {
	activity := plannedActivity()
	activity.Status = models.ActivityDocumented
	store := newStubActivityStore(activity)
	svc := NewActivityService(store, nil, zap.NewNop())

	_, err := svc.Cancel(context.Background(), schoolClaims(), "act-1")
	requireCode(t, err, "INVALID_TRANSITION")
}

func TestActivityForeignSchoolDenied(t *testing.T) {
	activity := plannedActivity()
	activity.SchoolID = "school-2"
	store := newStubActivityStore(activity)
	svc := NewActivityService(store, nil, zap.NewNop())

	_, err := svc.MarkHeld(context.Background(), schoolClaims(), "act-1")
	requireCode(t, err, "FORBIDDEN")
}
