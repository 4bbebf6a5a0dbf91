package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/repository"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/export"
)

type stubRequestStore struct {
	requests       map[string]*models.Request
	transitionErr  error
	appliedParams  *repository.TransitionParams
	letterPaths    map[string]string
	createdRequest *models.Request
}

func newStubRequestStore(requests ...*models.Request) *stubRequestStore {
	store := &stubRequestStore{
		requests:    make(map[string]*models.Request),
		letterPaths: make(map[string]string),
	}
	for _, request := range requests {
		store.requests[request.ID] = request
	}
	return store
}

func (s *stubRequestStore) Create(_ context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = "generated-id"
	}
	s.createdRequest = request
	s.requests[request.ID] = request
	return nil
}

func (s *stubRequestStore) GetByID(_ context.Context, id string) (*models.Request, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *request
	return &copied, nil
}

func (s *stubRequestStore) List(_ context.Context, filter models.RequestFilter) ([]models.Request, error) {
	var out []models.Request
	for _, request := range s.requests {
		if filter.SchoolID != "" && request.SchoolID != filter.SchoolID {
			continue
		}
		if filter.AgencyID != "" && request.AgencyID != filter.AgencyID {
			continue
		}
		out = append(out, *request)
	}
	return out, nil
}

func (s *stubRequestStore) ApplyTransition(_ context.Context, params repository.TransitionParams) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	request, ok := s.requests[params.ID]
	if !ok || request.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	s.appliedParams = &params
	request.Status = params.Status
	if params.Handling != nil {
		request.Handling = params.Handling
	}
	if params.DispatchedAt != nil {
		request.DispatchedAt = params.DispatchedAt
	}
	if params.AssignedTeam != nil {
		request.AssignedTeam = params.AssignedTeam
	}
	if params.RejectionReason != nil {
		request.RejectionReason = params.RejectionReason
	}
	if params.EntityResponseDate != nil {
		request.EntityResponseDate = params.EntityResponseDate
	}
	return nil
}

func (s *stubRequestStore) SetLetterPath(_ context.Context, id, path string) error {
	s.letterPaths[id] = path
	if request, ok := s.requests[id]; ok {
		request.LetterPath = &path
	}
	return nil
}

type stubAudit struct {
	entries []*models.AuditLog
}

func (s *stubAudit) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubNotifier struct {
	dispatched []workflow.PendingNotification
}

func (s *stubNotifier) Dispatch(_ string, notifications []workflow.PendingNotification) {
	s.dispatched = append(s.dispatched, notifications...)
}

type stubRenderer struct {
	rendered []export.Letter
}

func (s *stubRenderer) Render(letter export.Letter) ([]byte, error) {
	s.rendered = append(s.rendered, letter)
	return []byte("%PDF-stub"), nil
}

type stubLetterStorage struct {
	saved map[string][]byte
}

func (s *stubLetterStorage) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return filename, nil
}

func newTestService(store *stubRequestStore) (*RequestService, *stubAudit, *stubNotifier, *stubRenderer, *stubLetterStorage) {
	audit := &stubAudit{}
	notifier := &stubNotifier{}
	renderer := &stubRenderer{}
	letters := &stubLetterStorage{}
	svc := NewRequestService(store, audit, notifier, renderer, letters, "Coordination Office", zap.NewNop())
	return svc, audit, notifier, renderer, letters
}

func schoolClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleSchool, SchoolID: "school-1"}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func agencyClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "agency-user-1", Role: models.RoleAgency, AgencyID: "agency-1"}
}

func sentRequest() *models.Request {
	return &models.Request{
		ID:           "req-1",
		SchoolID:     "school-1",
		AgencyID:     "agency-1",
		CreatedBy:    "user-1",
		Topic:        "Recycling drive",
		Audience:     []byte(`["grade-10"]`),
		Participants: 40,
		Location:     "Main hall",
		Status:       workflow.StatusSent,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func TestCreateRequestInitializesWorkflow(t *testing.T) {
	store := newStubRequestStore()
	svc, audit, _, _, _ := newTestService(store)

	request, err := svc.Create(context.Background(), schoolClaims(), dto.CreateRequestRequest{
		AgencyID:        "agency-1",
		Topic:           "Recycling drive",
		Audience:        []string{"grade-10"},
		Participants:    40,
		Location:        "Main hall",
		DurationMinutes: 90,
		PreferredSlots:  []models.PreferredSlot{{Date: "2026-10-01", Start: "09:00", End: "11:00"}},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.InitialStatus, request.Status)
	require.Equal(t, "school-1", request.SchoolID)
	require.Equal(t, "user-1", request.CreatedBy)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.AuditActionRequestCreate, audit.entries[0].Action)
}

func TestCreateRequestRejectsNonSchool(t *testing.T) {
	store := newStubRequestStore()
	svc, _, _, _, _ := newTestService(store)

	_, err := svc.Create(context.Background(), adminClaims(), dto.CreateRequestRequest{AgencyID: "agency-1"})
	requireCode(t, err, "FORBIDDEN")
}

func TestTransitionDelegationNotifiesSchool(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, audit, notifier, _, _ := newTestService(store)

	request, err := svc.Transition(context.Background(), adminClaims(), "req-1", dto.TransitionRequest{
		Transition: "APPROVE_DELEGATE",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDelegatedToSchool, request.Status)
	require.NotNil(t, request.Handling)
	require.Equal(t, models.HandlingDelegated, *request.Handling)

	require.Len(t, notifier.dispatched, 1)
	require.Equal(t, "user-1", notifier.dispatched[0].RecipientID)
	require.Equal(t, workflow.NotifyDelegationGranted, notifier.dispatched[0].Type)

	require.Len(t, audit.entries, 1)
	require.Equal(t, models.AuditActionRequestTransition, audit.entries[0].Action)
}

func TestTransitionDispatchRendersLetterAndNotifiesAgency(t *testing.T) {
	request := sentRequest()
	request.Status = workflow.StatusDelegatedToSchool
	handling := models.HandlingDelegated
	request.Handling = &handling
	request.PreferredSlots = []byte(`[{"date":"2026-10-01","start":"09:00","end":"11:00"}]`)
	store := newStubRequestStore(request)
	svc, _, notifier, renderer, letters := newTestService(store)

	updated, err := svc.Transition(context.Background(), schoolClaims(), "req-1", dto.TransitionRequest{
		Transition: "DISPATCH",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSent, updated.Status)
	require.NotNil(t, updated.DispatchedAt)

	require.Len(t, notifier.dispatched, 1)
	require.Equal(t, models.AgencyInbox("agency-1"), notifier.dispatched[0].RecipientID)

	require.Len(t, renderer.rendered, 1)
	require.Equal(t, "Recycling drive", renderer.rendered[0].Topic)
	require.Contains(t, letters.saved, "req-1.pdf")
	require.Equal(t, "req-1.pdf", store.letterPaths["req-1"])
}

func TestTransitionEntityApproveRecordsTeam(t *testing.T) {
	request := sentRequest()
	store := newStubRequestStore(request)
	svc, _, notifier, _, _ := newTestService(store)

	updated, err := svc.Transition(context.Background(), agencyClaims(), "req-1", dto.TransitionRequest{
		Transition:   "ENTITY_APPROVE",
		AssignedTeam: "Outreach unit",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEntityApproved, updated.Status)
	require.NotNil(t, updated.AssignedTeam)
	require.Equal(t, "Outreach unit", *updated.AssignedTeam)
	require.NotNil(t, updated.EntityResponseDate)

	require.Len(t, notifier.dispatched, 1)
	require.Equal(t, "user-1", notifier.dispatched[0].RecipientID)
}

func TestTransitionConcurrentLoserGetsConflict(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	store.transitionErr = sql.ErrNoRows
	svc, _, notifier, _, _ := newTestService(store)

	_, err := svc.Transition(context.Background(), adminClaims(), "req-1", dto.TransitionRequest{
		Transition: "APPROVE_CENTRAL",
	})
	requireCode(t, err, "CONCURRENT_MODIFICATION")
	require.Empty(t, notifier.dispatched, "losing transition must not notify")
}

func TestTransitionRejectedRequestStaysRejected(t *testing.T) {
	request := sentRequest()
	request.Status = workflow.StatusRejected
	store := newStubRequestStore(request)
	svc, _, notifier, _, _ := newTestService(store)

	_, err := svc.Transition(context.Background(), agencyClaims(), "req-1", dto.TransitionRequest{
		Transition:   "ENTITY_APPROVE",
		AssignedTeam: "Outreach unit",
	})
	requireCode(t, err, "INVALID_TRANSITION")
	require.Empty(t, notifier.dispatched)
	require.Equal(t, workflow.StatusRejected, store.requests["req-1"].Status)
}

func TestTransitionUnknownTrigger(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, _, _, _, _ := newTestService(store)

	_, err := svc.Transition(context.Background(), adminClaims(), "req-1", dto.TransitionRequest{
		Transition: "TELEPORT",
	})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestOverrideStatusRequiresAdmin(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, _, _, _, _ := newTestService(store)

	_, err := svc.OverrideStatus(context.Background(), schoolClaims(), "req-1", dto.OverrideStatusRequest{
		Status: "COMPLETED",
		Reason: "cleanup",
	})
	requireCode(t, err, "FORBIDDEN")
}

func TestOverrideStatusAuditsOperatorReason(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, audit, _, _, _ := newTestService(store)

	updated, err := svc.OverrideStatus(context.Background(), adminClaims(), "req-1", dto.OverrideStatusRequest{
		Status: "COMPLETED",
		Reason: "migrated from legacy records",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, updated.Status)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.AuditActionStatusOverride, audit.entries[0].Action)
	require.Contains(t, string(audit.entries[0].NewValues), "migrated from legacy records")
}

func TestListForcesScopeFromClaims(t *testing.T) {
	other := sentRequest()
	other.ID = "req-2"
	other.SchoolID = "school-2"
	store := newStubRequestStore(sentRequest(), other)
	svc, _, _, _, _ := newTestService(store)

	requests, err := svc.List(context.Background(), schoolClaims(), dto.RequestQuery{SchoolID: "school-2"})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "school-1", requests[0].SchoolID)
}

func TestGetDeniesForeignAgency(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, _, _, _, _ := newTestService(store)

	claims := &models.JWTClaims{UserID: "x", Role: models.RoleAgency, AgencyID: "agency-9"}
	_, err := svc.Get(context.Background(), claims, "req-1")
	requireCode(t, err, "FORBIDDEN")
}

func TestDelegatedEndToEnd(t *testing.T) {
	store := newStubRequestStore()
	svc, _, notifier, renderer, _ := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, schoolClaims(), dto.CreateRequestRequest{
		AgencyID:        "agency-1",
		Topic:           "River cleanup",
		Audience:        []string{"grade-11"},
		Participants:    30,
		Location:        "Riverside",
		DurationMinutes: 120,
		PreferredSlots:  []models.PreferredSlot{{Date: "2026-10-05", Start: "08:00", End: "12:00"}},
	})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, adminClaims(), created.ID, dto.TransitionRequest{Transition: "APPROVE_DELEGATE"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, schoolClaims(), created.ID, dto.TransitionRequest{Transition: "DISPATCH"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, agencyClaims(), created.ID, dto.TransitionRequest{
		Transition:   "ENTITY_APPROVE",
		AssignedTeam: "Field team",
	})
	require.NoError(t, err)

	final, err := svc.Transition(ctx, schoolClaims(), created.ID, dto.TransitionRequest{Transition: "COMPLETE"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, final.Status)

	// delegation notice, agency inbox notice, approval notice
	require.Len(t, notifier.dispatched, 3)
	require.Len(t, renderer.rendered, 1)
}

func TestCancelBeforeDispatchStaysSilent(t *testing.T) {
	store := newStubRequestStore(sentRequest())
	svc, _, notifier, _, _ := newTestService(store)

	updated, err := svc.Transition(context.Background(), schoolClaims(), "req-1", dto.TransitionRequest{
		Transition: "CANCEL",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, updated.Status)
	require.Empty(t, notifier.dispatched)

	_, err = svc.Transition(context.Background(), adminClaims(), "req-1", dto.TransitionRequest{
		Transition: "APPROVE_CENTRAL",
	})
	requireCode(t, err, "INVALID_TRANSITION")
}
