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

// SubmissionOperations is the submission service surface the handler calls.
type SubmissionOperations interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateSubmissionRequest) (*models.Submission, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.SubmissionQuery) ([]models.Submission, error)
	Review(ctx context.Context, claims *models.JWTClaims, id string, req dto.ReviewSubmissionRequest) (*models.Submission, error)
}

// SubmissionHandler serves the challenge submission endpoints.
type SubmissionHandler struct {
	service  SubmissionOperations
	validate *validator.Validate
}

func NewSubmissionHandler(service SubmissionOperations) *SubmissionHandler {
	return &SubmissionHandler{service: service, validate: validator.New()}
}

// Create godoc
// @Summary Enter a challenge submission
// @Tags submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "submission payload"
// @Success 201 {object} response.Envelope{data=models.Submission}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	submission, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions
// @Tags submissions
// @Produce json
// @Param status query string false "comma separated statuses"
// @Param school_id query string false "school scope (admin only)"
// @Success 200 {object} response.Envelope{data=[]models.Submission}
// @Security BearerAuth
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.SubmissionQuery{
		SchoolID: c.Query("school_id"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.SubmissionStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}

	submissions, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Review godoc
// @Summary Review a submission
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "submission id"
// @Param payload body dto.ReviewSubmissionRequest true "decision payload"
// @Success 200 {object} response.Envelope{data=models.Submission}
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/review [post]
func (h *SubmissionHandler) Review(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}

	submission, err := h.service.Review(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
