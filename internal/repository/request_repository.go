package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
)

const requestColumns = `id, school_id, agency_id, created_by, topic, audience, participants, location, duration_minutes, preferred_slots, notes, status, handling, dispatched_at, letter_path, assigned_team, entity_response_notes, entity_response_date, rejection_reason, created_at, updated_at`

// RequestRepository persists coordination requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = workflow.InitialStatus
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO requests
	(id, school_id, agency_id, created_by, topic, audience, participants, location, duration_minutes,
	 preferred_slots, notes, status, handling, dispatched_at, letter_path, assigned_team,
	 entity_response_notes, entity_response_date, rejection_reason, created_at, updated_at)
	VALUES (:id, :school_id, :agency_id, :created_by, :topic, :audience, :participants, :location,
	 :duration_minutes, :preferred_slots, :notes, :status, :handling, :dispatched_at, :letter_path,
	 :assigned_team, :entity_response_notes, :entity_response_date, :rejection_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + requestColumns + ` FROM requests`)

	conditions := make([]string, 0, 3)
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.AgencyID != "" {
		args = append(args, filter.AgencyID)
		conditions = append(conditions, fmt.Sprintf("agency_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// TransitionParams groups the columns a workflow transition may touch.
// FromStatus is the status observed at read time; the write only lands if
// it is still current.
type TransitionParams struct {
	ID                  string
	FromStatus          workflow.Status
	Status              workflow.Status
	Handling            *models.RequestHandling
	DispatchedAt        *time.Time
	AssignedTeam        *string
	EntityResponseNotes *string
	EntityResponseDate  *time.Time
	RejectionReason     *string
	UpdatedAt           time.Time
}

// ApplyTransition performs the compare-and-set status write. Returns
// sql.ErrNoRows when the status moved since the read, so callers can
// surface a concurrent-modification error and let the actor retry.
func (r *RequestRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	setParts := []string{
		"status = :status",
		"updated_at = :updated_at",
	}
	if params.Handling != nil {
		setParts = append(setParts, "handling = :handling")
	}
	if params.DispatchedAt != nil {
		setParts = append(setParts, "dispatched_at = :dispatched_at")
	}
	if params.AssignedTeam != nil {
		setParts = append(setParts, "assigned_team = :assigned_team")
	}
	if params.EntityResponseNotes != nil {
		setParts = append(setParts, "entity_response_notes = :entity_response_notes")
	}
	if params.EntityResponseDate != nil {
		setParts = append(setParts, "entity_response_date = :entity_response_date")
	}
	if params.RejectionReason != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason")
	}
	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                    params.ID,
		"from_status":           params.FromStatus,
		"status":                params.Status,
		"handling":              params.Handling,
		"dispatched_at":         params.DispatchedAt,
		"assigned_team":         params.AssignedTeam,
		"entity_response_notes": params.EntityResponseNotes,
		"entity_response_date":  params.EntityResponseDate,
		"rejection_reason":      params.RejectionReason,
		"updated_at":            params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetLetterPath records where the rendered dispatch letter was stored.
func (r *RequestRepository) SetLetterPath(ctx context.Context, id, path string) error {
	const query = `UPDATE requests SET letter_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("set letter path: %w", err)
	}
	return nil
}

// CountByStatus counts a school's requests in the given statuses.
func (r *RequestRepository) CountByStatus(ctx context.Context, schoolID string, statuses []workflow.Status) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(statuses)+1)
	args = append(args, schoolID)
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM requests WHERE school_id = $1 AND status IN (%s)",
		strings.Join(placeholders, ","))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count requests by status: %w", err)
	}
	return count, nil
}
