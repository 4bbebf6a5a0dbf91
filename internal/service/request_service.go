package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/repository"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/export"
)

// RequestStore is the request persistence surface the service needs.
type RequestStore interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
	SetLetterPath(ctx context.Context, id, path string) error
}

// AuditWriter records audit rows; failures are logged, never surfaced.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// LetterWriter renders and stores dispatch letters.
type LetterWriter interface {
	Render(letter export.Letter) ([]byte, error)
}

// LetterStorage stores rendered letters and hands back the relative path.
type LetterStorage interface {
	Save(filename string, data []byte) (string, error)
}

// RequestService coordinates the request workflow: it evaluates transitions
// through the pure engine, commits them with a guarded update, and delivers
// side effects afterwards.
type RequestService struct {
	store      RequestStore
	audit      AuditWriter
	notifier   Notifier
	renderer   LetterWriter
	letters    LetterStorage
	issuerName string
	logger     *zap.Logger
}

func NewRequestService(
	store RequestStore,
	audit AuditWriter,
	notifier Notifier,
	renderer LetterWriter,
	letters LetterStorage,
	issuerName string,
	logger *zap.Logger,
) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		store:      store,
		audit:      audit,
		notifier:   notifier,
		renderer:   renderer,
		letters:    letters,
		issuerName: issuerName,
		logger:     logger,
	}
}

// actorFromClaims converts portal claims into a workflow actor.
func actorFromClaims(claims *models.JWTClaims) workflow.Actor {
	return workflow.Actor{
		ID:       claims.UserID,
		Role:     workflow.Role(claims.Role),
		SchoolID: claims.SchoolID,
		AgencyID: claims.AgencyID,
	}
}

// viewOf builds the engine's read model from a stored request.
func viewOf(request *models.Request) workflow.RequestView {
	return workflow.RequestView{
		ID:         request.ID,
		SchoolID:   request.SchoolID,
		AgencyID:   request.AgencyID,
		CreatedBy:  request.CreatedBy,
		Status:     request.Status,
		Delegated:  request.Handling != nil && *request.Handling == models.HandlingDelegated,
		Dispatched: request.DispatchedAt != nil,
		Topic:      request.Topic,
	}
}

// Create raises a new request for the caller's school. Requests are born in
// the administrator's review queue.
func (s *RequestService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.Request, error) {
	if claims.Role != models.RoleSchool || claims.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school coordinators may raise requests")
	}

	audience, err := json.Marshal(req.Audience)
	if err != nil {
		return nil, appErrors.Wrap(err, "VALIDATION_ERROR", 400, "invalid audience")
	}
	slots, err := json.Marshal(req.PreferredSlots)
	if err != nil {
		return nil, appErrors.Wrap(err, "VALIDATION_ERROR", 400, "invalid preferred slots")
	}

	request := &models.Request{
		SchoolID:        claims.SchoolID,
		AgencyID:        req.AgencyID,
		CreatedBy:       claims.UserID,
		Topic:           req.Topic,
		Audience:        audience,
		Participants:    req.Participants,
		Location:        req.Location,
		DurationMinutes: req.DurationMinutes,
		PreferredSlots:  slots,
		Notes:           req.Notes,
		Status:          workflow.InitialStatus,
	}
	if err := s.store.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to create request")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionRequestCreate, request.ID, nil, request)
	return request, nil
}

// Get returns a request the caller is a party to.
func (s *RequestService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Request, error) {
	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load request")
	}
	if err := s.authorizeRead(claims, request); err != nil {
		return nil, err
	}
	return request, nil
}

// List returns requests visible to the caller. Non-admin scopes are forced
// from the claims regardless of the query.
func (s *RequestService) List(ctx context.Context, claims *models.JWTClaims, query dto.RequestQuery) ([]models.Request, error) {
	filter := models.RequestFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	switch claims.Role {
	case models.RoleSchool:
		if claims.SchoolID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "school scope missing from token")
		}
		filter.SchoolID = claims.SchoolID
	case models.RoleAgency:
		if claims.AgencyID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "agency scope missing from token")
		}
		filter.AgencyID = claims.AgencyID
	default:
		filter.SchoolID = query.SchoolID
		filter.AgencyID = query.AgencyID
	}

	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list requests")
	}
	return requests, nil
}

// Transition applies one workflow trigger. The engine decides legality and
// side effects; the guarded update decides the race; notifications and the
// dispatch letter follow only a successful write.
func (s *RequestService) Transition(ctx context.Context, claims *models.JWTClaims, id string, req dto.TransitionRequest) (*models.Request, error) {
	trig, ok := workflow.ParseTrigger(req.Transition)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transition: %s", req.Transition))
	}

	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load request")
	}

	outcome, err := workflow.Apply(viewOf(request), trig, actorFromClaims(claims), workflow.Payload{
		AssignedTeam:    req.AssignedTeam,
		RejectionReason: req.RejectionReason,
		ResponseNotes:   req.ResponseNotes,
	})
	if err != nil {
		return nil, err
	}

	params := repository.TransitionParams{
		ID:         request.ID,
		FromStatus: outcome.From,
		Status:     outcome.To,
		UpdatedAt:  time.Now().UTC(),
	}
	if outcome.Handling != "" {
		handling := models.RequestHandling(outcome.Handling)
		params.Handling = &handling
	}
	if outcome.MarkDispatched {
		now := time.Now().UTC()
		params.DispatchedAt = &now
	}
	if outcome.AssignedTeam != "" {
		params.AssignedTeam = &outcome.AssignedTeam
	}
	if outcome.ResponseNotes != "" {
		params.EntityResponseNotes = &outcome.ResponseNotes
	}
	if outcome.RecordResponseDate {
		now := time.Now().UTC()
		params.EntityResponseDate = &now
	}
	if outcome.RejectionReason != "" {
		params.RejectionReason = &outcome.RejectionReason
	}

	if err := s.store.ApplyTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to apply transition")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionRequestTransition, request.ID,
		map[string]interface{}{"status": outcome.From},
		map[string]interface{}{"status": outcome.To, "transition": trig})
	s.notifier.Dispatch(request.ID, outcome.Notifications)

	if outcome.MarkDispatched {
		s.renderDispatchLetter(ctx, request)
	}

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to reload request")
	}
	return updated, nil
}

// OverrideStatus forces a status outside the workflow table. Administrator
// escape hatch, always audited with the operator's reason.
func (s *RequestService) OverrideStatus(ctx context.Context, claims *models.JWTClaims, id string, req dto.OverrideStatusRequest) (*models.Request, error) {
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may override request status")
	}
	target := workflow.Status(req.Status)
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status: %s", req.Status))
	}

	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load request")
	}
	if request.Status == target {
		return request, nil
	}

	err = s.store.ApplyTransition(ctx, repository.TransitionParams{
		ID:         request.ID,
		FromStatus: request.Status,
		Status:     target,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to override status")
	}

	s.writeAudit(ctx, claims.UserID, models.AuditActionStatusOverride, request.ID,
		map[string]interface{}{"status": request.Status},
		map[string]interface{}{"status": target, "reason": req.Reason})

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to reload request")
	}
	return updated, nil
}

// LetterPath returns the stored letter path after checking read access.
func (s *RequestService) LetterPath(ctx context.Context, claims *models.JWTClaims, id string) (string, error) {
	request, err := s.Get(ctx, claims, id)
	if err != nil {
		return "", err
	}
	if request.LetterPath == nil || *request.LetterPath == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no dispatch letter for this request")
	}
	return *request.LetterPath, nil
}

func (s *RequestService) authorizeRead(claims *models.JWTClaims, request *models.Request) error {
	switch claims.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
		return nil
	case models.RoleSchool:
		if claims.SchoolID != "" && claims.SchoolID == request.SchoolID {
			return nil
		}
	case models.RoleAgency:
		if claims.AgencyID != "" && claims.AgencyID == request.AgencyID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another party")
}

// renderDispatchLetter builds the official PDF after a dispatch. Best
// effort: a rendering failure is logged, the dispatched status stands.
func (s *RequestService) renderDispatchLetter(ctx context.Context, request *models.Request) {
	if s.renderer == nil || s.letters == nil {
		return
	}
	var audience []string
	if err := json.Unmarshal(request.Audience, &audience); err != nil {
		s.logger.Sugar().Warnw("letter audience decode failed", "request_id", request.ID, "error", err)
	}
	var slots []models.PreferredSlot
	if err := json.Unmarshal(request.PreferredSlots, &slots); err != nil {
		s.logger.Sugar().Warnw("letter slots decode failed", "request_id", request.ID, "error", err)
	}
	preferred := ""
	if len(slots) > 0 {
		preferred = fmt.Sprintf("%s %s-%s", slots[0].Date, slots[0].Start, slots[0].End)
	}

	pdf, err := s.renderer.Render(export.Letter{
		Number:        fmt.Sprintf("ECO/%s/%s", time.Now().UTC().Format("2006"), request.ID[:8]),
		IssuerName:    s.issuerName,
		SchoolName:    request.SchoolID,
		AgencyName:    request.AgencyID,
		Topic:         request.Topic,
		Audience:      audience,
		Participants:  request.Participants,
		Location:      request.Location,
		Duration:      request.DurationMinutes,
		PreferredSlot: preferred,
		Notes:         request.Notes,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		s.logger.Sugar().Errorw("dispatch letter render failed", "request_id", request.ID, "error", err)
		return
	}

	path, err := s.letters.Save(fmt.Sprintf("%s.pdf", request.ID), pdf)
	if err != nil {
		s.logger.Sugar().Errorw("dispatch letter store failed", "request_id", request.ID, "error", err)
		return
	}
	if err := s.store.SetLetterPath(ctx, request.ID, path); err != nil {
		s.logger.Sugar().Errorw("dispatch letter path update failed", "request_id", request.ID, "error", err)
	}
}

func (s *RequestService) writeAudit(ctx context.Context, userID, action, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "request",
		ResourceID: &resourceID,
	}
	if oldValues != nil {
		if raw, err := json.Marshal(oldValues); err == nil {
			entry.OldValues = raw
		}
	}
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("audit write failed", "action", action, "resource_id", resourceID, "error", err)
	}
}
