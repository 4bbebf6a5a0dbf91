package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// NotificationOperations is the notification service surface the handler
// calls.
type NotificationOperations interface {
	List(ctx context.Context, claims *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, claims *models.JWTClaims, id string) error
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
	UnreadCount(ctx context.Context, claims *models.JWTClaims) (int, error)
}

// NotificationHandler serves the inbox endpoints.
type NotificationHandler struct {
	service NotificationOperations
}

func NewNotificationHandler(service NotificationOperations) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List the caller's notifications
// @Tags notifications
// @Produce json
// @Param unread_only query bool false "only unread"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} response.Envelope{data=[]models.Notification}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.service.List(c.Request.Context(), claims, unreadOnly,
		intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark one notification as read
// @Tags notifications
// @Produce json
// @Param id path string true "notification id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete one of the caller's notifications
// @Tags notifications
// @Produce json
// @Param id path string true "notification id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary Count the caller's unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}
