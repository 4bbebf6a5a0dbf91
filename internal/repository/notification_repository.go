package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eco-coord-api/internal/models"
)

// NotificationRepository persists per-recipient notifications. Agency
// inboxes use the synthetic AGENCY_<id> recipient, so every query keyed by
// recipient works the same for users and agencies.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, recipient_id, type, title, body, request_id, read, created_at)
		VALUES (:id, :recipient_id, :type, :title, :body, :request_id, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns notifications for any of the recipient identities, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	if len(filter.RecipientIDs) == 0 {
		return []models.Notification{}, nil
	}
	args := make([]interface{}, 0, len(filter.RecipientIDs))
	placeholders := make([]string, len(filter.RecipientIDs))
	for i, id := range filter.RecipientIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT id, recipient_id, type, title, body, request_id, read, created_at FROM notifications WHERE recipient_id IN (%s)`, strings.Join(placeholders, ","))
	if filter.UnreadOnly {
		query += " AND read = FALSE"
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

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flips a notification to read, but only when it belongs to one of
// the caller's recipient identities. Zero rows means not found or not owned.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, recipientIDs []string) (int64, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(recipientIDs)+1)
	args = append(args, id)
	placeholders := make([]string, len(recipientIDs))
	for i, rid := range recipientIDs {
		args = append(args, rid)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf("UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id IN (%s)",
		strings.Join(placeholders, ","))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes a notification, but only when it belongs to one of the
// caller's recipient identities. Zero rows means not found or not owned.
func (r *NotificationRepository) Delete(ctx context.Context, id string, recipientIDs []string) (int64, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(recipientIDs)+1)
	args = append(args, id)
	placeholders := make([]string, len(recipientIDs))
	for i, rid := range recipientIDs {
		args = append(args, rid)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf("DELETE FROM notifications WHERE id = $1 AND recipient_id IN (%s)",
		strings.Join(placeholders, ","))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete notification: %w", err)
	}
	return result.RowsAffected()
}

// CountUnread counts unread notifications across the given identities.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientIDs []string) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(recipientIDs))
	placeholders := make([]string, len(recipientIDs))
	for i, rid := range recipientIDs {
		args = append(args, rid)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE read = FALSE AND recipient_id IN (%s)",
		strings.Join(placeholders, ","))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
