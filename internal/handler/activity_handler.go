package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// ActivityOperations is the activity service surface the handler calls.
type ActivityOperations interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateActivityRequest) (*models.Activity, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.ActivityQuery) ([]models.Activity, error)
	MarkHeld(ctx context.Context, claims *models.JWTClaims, id string) (*models.Activity, error)
	Document(ctx context.Context, claims *models.JWTClaims, id string, req dto.DocumentActivityRequest) (*models.Activity, error)
	Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*models.Activity, error)
	Categories(ctx context.Context) ([]models.PointCategory, error)
}

// ActivityHandler serves the internal activity endpoints.
type ActivityHandler struct {
	service  ActivityOperations
	validate *validator.Validate
}

func NewActivityHandler(service ActivityOperations) *ActivityHandler {
	return &ActivityHandler{service: service, validate: validator.New()}
}

// Create godoc
// @Summary Plan an internal school activity
// @Tags activities
// @Accept json
// @Produce json
// @Param payload body dto.CreateActivityRequest true "activity payload"
// @Success 201 {object} response.Envelope{data=models.Activity}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	activity, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// List godoc
// @Summary List activities
// @Tags activities
// @Produce json
// @Param status query string false "comma separated statuses"
// @Param school_id query string false "school scope (admin only)"
// @Success 200 {object} response.Envelope{data=[]models.Activity}
// @Security BearerAuth
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.ActivityQuery{
		SchoolID: c.Query("school_id"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.ActivityStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}

	activities, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	response.JSON(c, http.StatusOK, activities, nil)
}

// MarkHeld godoc
// @Summary Mark a planned activity as held
// @Tags activities
// @Produce json
// @Param id path string true "activity id"
// @Success 200 {object} response.Envelope{data=models.Activity}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/held [post]
func (h *ActivityHandler) MarkHeld(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	activity, err := h.service.MarkHeld(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Document godoc
// @Summary Document a held activity with its final headcount
// @Tags activities
// @Accept json
// @Produce json
// @Param id path string true "activity id"
// @Param payload body dto.DocumentActivityRequest true "documentation payload"
// @Success 200 {object} response.Envelope{data=models.Activity}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/document [post]
func (h *ActivityHandler) Document(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DocumentActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	activity, err := h.service.Document(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Cancel godoc
// @Summary Cancel an activity that was not documented
// @Tags activities
// @Produce json
// @Param id path string true "activity id"
// @Success 200 {object} response.Envelope{data=models.Activity}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/cancel [post]
func (h *ActivityHandler) Cancel(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	activity, err := h.service.Cancel(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Categories godoc
// @Summary List point categories
// @Tags activities
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.PointCategory}
// @Security BearerAuth
// @Router /categories [get]
func (h *ActivityHandler) Categories(c *gin.Context) {
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if categories == nil {
		categories = []models.PointCategory{}
	}
	response.JSON(c, http.StatusOK, categories, nil)
}
