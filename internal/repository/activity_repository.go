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

// ActivityRepository persists internal school activities and the point
// categories they are scored against.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, school_id, created_by, title, category_id, date, location, participants, status, documented_at, created_at, updated_at`

func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Status == "" {
		activity.Status = models.ActivityPlanned
	}
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	const query = `INSERT INTO activities
		(id, school_id, created_by, title, category_id, date, location, participants, status, documented_at, created_at, updated_at)
		VALUES (:id, :school_id, :created_by, :title, :category_id, :date, :location, :participants, :status, :documented_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities`
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
	query += " ORDER BY date DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// UpdateStatus moves an activity between lifecycle states with the same
// guarded-update discipline as request transitions. A nil documentedAt
// leaves the column untouched.
func (r *ActivityRepository) UpdateStatus(ctx context.Context, id string, from, to models.ActivityStatus, documentedAt *time.Time) error {
	now := time.Now().UTC()
	var (
		result sql.Result
		err    error
	)
	if documentedAt != nil {
		const query = `UPDATE activities SET status = $3, documented_at = $4, updated_at = $5 WHERE id = $1 AND status = $2`
		result, err = r.db.ExecContext(ctx, query, id, from, to, documentedAt, now)
	} else {
		const query = `UPDATE activities SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
		result, err = r.db.ExecContext(ctx, query, id, from, to, now)
	}
	if err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check activity rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateParticipants records the final headcount captured at documentation.
func (r *ActivityRepository) UpdateParticipants(ctx context.Context, id string, participants int) error {
	const query = `UPDATE activities SET participants = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, participants, time.Now().UTC()); err != nil {
		return fmt.Errorf("update activity participants: %w", err)
	}
	return nil
}

func (r *ActivityRepository) CountByStatus(ctx context.Context, schoolID string, status models.ActivityStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM activities WHERE school_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, status); err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return count, nil
}

// SumDocumentedPoints aggregates participants weighted by the category
// multiplier over the school's documented activities.
func (r *ActivityRepository) SumDocumentedPoints(ctx context.Context, schoolID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(a.participants * c.multiplier), 0)
		FROM activities a
		JOIN point_categories c ON c.id = a.category_id
		WHERE a.school_id = $1 AND a.status = $2`
	var points float64
	if err := r.db.GetContext(ctx, &points, query, schoolID, models.ActivityDocumented); err != nil {
		return 0, fmt.Errorf("sum documented points: %w", err)
	}
	return points, nil
}

func (r *ActivityRepository) ListCategories(ctx context.Context) ([]models.PointCategory, error) {
	const query = `SELECT id, name, multiplier, created_at FROM point_categories ORDER BY name`
	var categories []models.PointCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list point categories: %w", err)
	}
	return categories, nil
}

func (r *ActivityRepository) GetCategory(ctx context.Context, id string) (*models.PointCategory, error) {
	const query = `SELECT id, name, multiplier, created_at FROM point_categories WHERE id = $1`
	var category models.PointCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}
