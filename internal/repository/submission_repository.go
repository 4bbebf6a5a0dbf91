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
)

// SubmissionRepository persists challenge submissions awaiting central
// review.
type SubmissionRepository struct {
	db *sqlx.DB
}

func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, school_id, category_id, title, description, participants, status, submitted_by, reviewed_by, reviewed_at, review_note, created_at`

func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionSubmitted
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions
		(id, school_id, category_id, title, description, participants, status, submitted_by,
		 reviewed_by, reviewed_at, review_note, created_at)
		VALUES (:id, :school_id, :category_id, :title, :description, :participants, :status, :submitted_by,
		 :reviewed_by, :reviewed_at, :review_note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 2)
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
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
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Review closes a submission, guarded on it still being unreviewed so two
// reviewers cannot both win.
func (r *SubmissionRepository) Review(ctx context.Context, id string, status models.SubmissionStatus, reviewerID string, note *string) error {
	const query = `UPDATE submissions
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5
		WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, status, reviewerID, time.Now().UTC(), note, models.SubmissionSubmitted)
	if err != nil {
		return fmt.Errorf("review submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SumApprovedPoints aggregates participants weighted by the category
// multiplier over the school's approved submissions.
func (r *SubmissionRepository) SumApprovedPoints(ctx context.Context, schoolID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(s.participants * c.multiplier), 0)
		FROM submissions s
		JOIN point_categories c ON c.id = s.category_id
		WHERE s.school_id = $1 AND s.status = $2`
	var points float64
	if err := r.db.GetContext(ctx, &points, query, schoolID, models.SubmissionApproved); err != nil {
		return 0, fmt.Errorf("sum approved points: %w", err)
	}
	return points, nil
}

func (r *SubmissionRepository) CountApproved(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE school_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, models.SubmissionApproved); err != nil {
		return 0, fmt.Errorf("count approved submissions: %w", err)
	}
	return count, nil
}
