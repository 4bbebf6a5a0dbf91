package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

const unreadCacheKeyPrefix = "notifications:unread:"

// NotificationStore is the notification persistence surface the service
// needs.
type NotificationStore interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string, recipientIDs []string) (int64, error)
	Delete(ctx context.Context, id string, recipientIDs []string) (int64, error)
	CountUnread(ctx context.Context, recipientIDs []string) (int, error)
}

// NotificationCache caches per-identity unread counters. A nil cache
// disables caching and every count goes to the store.
type NotificationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NotificationService reads a caller's inbox. Agency managers see their
// personal messages plus the shared agency inbox.
type NotificationService struct {
	store    NotificationStore
	cache    NotificationCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewNotificationService(store NotificationStore, cache NotificationCache, cacheTTL time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// recipientIdentities lists every inbox the caller may read.
func recipientIdentities(claims *models.JWTClaims) []string {
	identities := []string{claims.UserID}
	if claims.Role == models.RoleAgency && claims.AgencyID != "" {
		identities = append(identities, models.AgencyInbox(claims.AgencyID))
	}
	return identities
}

func unreadCacheKey(identity string) string {
	return unreadCacheKeyPrefix + identity
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, claims *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	notifications, err := s.store.List(ctx, models.NotificationFilter{
		RecipientIDs: recipientIdentities(claims),
		UnreadOnly:   unreadOnly,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flips one of the caller's notifications to read.
func (s *NotificationService) MarkRead(ctx context.Context, claims *models.JWTClaims, id string) error {
	identities := recipientIdentities(claims)
	affected, err := s.store.MarkRead(ctx, id, identities)
	if err != nil {
		return appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to mark notification")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.invalidateUnread(ctx, identities)
	return nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	identities := recipientIdentities(claims)
	affected, err := s.store.Delete(ctx, id, identities)
	if err != nil {
		return appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to delete notification")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.invalidateUnread(ctx, identities)
	return nil
}

// UnreadCount returns the caller's unread badge count. Counts are cached
// per identity so the shared agency inbox counter is invalidated for every
// manager at once.
func (s *NotificationService) UnreadCount(ctx context.Context, claims *models.JWTClaims) (int, error) {
	identities := recipientIdentities(claims)
	if s.cache == nil {
		count, err := s.store.CountUnread(ctx, identities)
		if err != nil {
			return 0, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to count notifications")
		}
		return count, nil
	}

	total := 0
	for _, identity := range identities {
		var cached int
		err := s.cache.Get(ctx, unreadCacheKey(identity), &cached)
		if err == nil {
			total += cached
			continue
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("unread counter cache read failed", "identity", identity, "error", err)
		}
		count, err := s.store.CountUnread(ctx, []string{identity})
		if err != nil {
			return 0, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to count notifications")
		}
		if err := s.cache.Set(ctx, unreadCacheKey(identity), count, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("unread counter cache write failed", "identity", identity, "error", err)
		}
		total += count
	}
	return total, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, identities []string) {
	if s.cache == nil {
		return
	}
	for _, identity := range identities {
		if err := s.cache.Delete(ctx, unreadCacheKey(identity)); err != nil {
			s.logger.Sugar().Warnw("unread counter invalidation failed", "identity", identity, "error", err)
		}
	}
}
