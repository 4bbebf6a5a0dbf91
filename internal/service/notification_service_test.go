package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

type stubNotificationStore struct {
	lastFilter       models.NotificationFilter
	notifications    []models.Notification
	markAffected     int64
	deleteAffected   int64
	countsByIdentity map[string]int
	countCalls       int
}

func (s *stubNotificationStore) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	s.lastFilter = filter
	return s.notifications, nil
}

func (s *stubNotificationStore) MarkRead(_ context.Context, _ string, recipientIDs []string) (int64, error) {
	s.lastFilter = models.NotificationFilter{RecipientIDs: recipientIDs}
	return s.markAffected, nil
}

func (s *stubNotificationStore) Delete(_ context.Context, _ string, recipientIDs []string) (int64, error) {
	s.lastFilter = models.NotificationFilter{RecipientIDs: recipientIDs}
	return s.deleteAffected, nil
}

func (s *stubNotificationStore) CountUnread(_ context.Context, recipientIDs []string) (int, error) {
	s.lastFilter = models.NotificationFilter{RecipientIDs: recipientIDs}
	s.countCalls++
	if s.countsByIdentity != nil {
		total := 0
		for _, rid := range recipientIDs {
			total += s.countsByIdentity[rid]
		}
		return total, nil
	}
	return len(s.notifications), nil
}

// counterCache is an in-memory stand-in for the Redis unread counters.
type counterCache struct {
	counts map[string]int
}

func newCounterCache() *counterCache {
	return &counterCache{counts: make(map[string]int)}
}

func (c *counterCache) Get(_ context.Context, key string, dest interface{}) error {
	count, ok := c.counts[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*int) = count
	return nil
}

func (c *counterCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.counts[key] = value.(int)
	return nil
}

func (c *counterCache) Delete(_ context.Context, key string) error {
	delete(c.counts, key)
	return nil
}

func TestNotificationListAgencySeesSharedInbox(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, nil, 0, zap.NewNop())

	_, err := svc.List(context.Background(), agencyClaims(), false, 20, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"agency-user-1", "AGENCY_agency-1"}, store.lastFilter.RecipientIDs)
}

func TestNotificationListSchoolSeesOnlyOwnInbox(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, nil, 0, zap.NewNop())

	_, err := svc.List(context.Background(), schoolClaims(), true, 20, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"user-1"}, store.lastFilter.RecipientIDs)
	require.True(t, store.lastFilter.UnreadOnly)
}

func TestNotificationMarkReadForeignReturnsNotFound(t *testing.T) {
	store := &stubNotificationStore{markAffected: 0}
	svc := NewNotificationService(store, nil, 0, zap.NewNop())

	err := svc.MarkRead(context.Background(), schoolClaims(), "n-1")
	requireCode(t, err, "NOT_FOUND")
}

func TestNotificationMarkReadOwn(t *testing.T) {
	store := &stubNotificationStore{markAffected: 1}
	svc := NewNotificationService(store, nil, 0, zap.NewNop())

	require.NoError(t, svc.MarkRead(context.Background(), schoolClaims(), "n-1"))
}

func TestNotificationDeleteForeignReturnsNotFound(t *testing.T) {
	store := &stubNotificationStore{deleteAffected: 0}
	svc := NewNotificationService(store, nil, 0, zap.NewNop())

	err := svc.Delete(context.Background(), schoolClaims(), "n-1")
	requireCode(t, err, "NOT_FOUND")
}

func TestNotificationUnreadCountSumsIdentities(t *testing.T) {
	store := &stubNotificationStore{countsByIdentity: map[string]int{
		"agency-user-1":   2,
		"AGENCY_agency-1": 3,
	}}
	svc := NewNotificationService(store, newCounterCache(), time.Minute, zap.NewNop())

	count, err := svc.UnreadCount(context.Background(), agencyClaims())
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestNotificationUnreadCountCachedPerIdentity(t *testing.T) {
	store := &stubNotificationStore{countsByIdentity: map[string]int{"user-1": 4}}
	cache := newCounterCache()
	svc := NewNotificationService(store, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := svc.UnreadCount(ctx, schoolClaims())
	require.NoError(t, err)
	storeCalls := store.countCalls

	second, err := svc.UnreadCount(ctx, schoolClaims())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, storeCalls, store.countCalls, "cached read must not hit the store")
}

func TestNotificationMarkReadInvalidatesUnreadCounter(t *testing.T) {
	store := &stubNotificationStore{markAffected: 1, countsByIdentity: map[string]int{"user-1": 4}}
	cache := newCounterCache()
	svc := NewNotificationService(store, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := svc.UnreadCount(ctx, schoolClaims())
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, schoolClaims(), "n-1"))
	require.Empty(t, cache.counts)

	store.countsByIdentity["user-1"] = 3
	count, err := svc.UnreadCount(ctx, schoolClaims())
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
