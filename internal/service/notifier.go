package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	"github.com/noah-isme/eco-coord-api/pkg/jobs"
)

// Notifier delivers workflow side effects after the state write landed.
// Delivery is best effort: a failure never rolls back the transition.
type Notifier interface {
	Dispatch(requestID string, notifications []workflow.PendingNotification)
}

// NotificationWriter is the slice of the notification store the dispatcher
// needs.
type NotificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// QueueNotifier persists pending notifications through the background
// worker pool so HTTP handlers never wait on notification writes.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier wires the dispatcher: the returned notifier enqueues,
// the queue's handler persists and drops the recipient's cached unread
// counter. Call Start on the queue before use.
func NewQueueNotifier(store NotificationWriter, cache NotificationCache, cfg jobs.QueueConfig) (*QueueNotifier, *jobs.Queue) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(*models.Notification)
		if !ok {
			logger.Sugar().Errorw("unexpected notification payload", "job_id", job.ID)
			return nil
		}
		if err := store.Create(ctx, notification); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Delete(ctx, unreadCacheKey(notification.RecipientID)); err != nil {
				logger.Sugar().Warnw("unread counter invalidation failed",
					"recipient", notification.RecipientID, "error", err)
			}
		}
		return nil
	}
	queue := jobs.NewQueue("notifications", handler, cfg)
	return &QueueNotifier{queue: queue, logger: logger}, queue
}

// Dispatch enqueues one job per pending notification. Enqueue failures are
// logged and dropped; the workflow write already happened.
func (n *QueueNotifier) Dispatch(requestID string, notifications []workflow.PendingNotification) {
	for _, pending := range notifications {
		reqID := pending.RequestID
		if reqID == "" {
			reqID = requestID
		}
		notification := &models.Notification{
			ID:          uuid.NewString(),
			RecipientID: pending.RecipientID,
			Type:        models.NotificationType(pending.Type),
			Title:       pending.Title,
			Body:        pending.Body,
		}
		if reqID != "" {
			notification.RequestID = &reqID
		}
		err := n.queue.Enqueue(jobs.Job{
			ID:      notification.ID,
			Type:    string(notification.Type),
			Payload: notification,
		})
		if err != nil {
			n.logger.Sugar().Errorw("failed to enqueue notification",
				"recipient", pending.RecipientID, "type", pending.Type, "error", err)
		}
	}
}
