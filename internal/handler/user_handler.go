package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/service"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// UserOperations is the user service surface the handler calls.
type UserOperations interface {
	Create(ctx context.Context, input service.CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Update(ctx context.Context, id string, input service.UpdateUserInput) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
}

// UserHandler serves the account administration endpoints.
type UserHandler struct {
	service  UserOperations
	validate *validator.Validate
}

func NewUserHandler(service UserOperations) *UserHandler {
	return &UserHandler{service: service, validate: validator.New()}
}

// Create godoc
// @Summary Provision an account
// @Tags users
// @Accept json
// @Produce json
// @Param payload body service.CreateUserInput true "account payload"
// @Success 201 {object} response.Envelope{data=models.User}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var input service.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	user, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// List godoc
// @Summary List accounts
// @Tags users
// @Produce json
// @Param role query string false "role filter"
// @Param active query bool false "active filter"
// @Param search query string false "email or name search"
// @Param page query int false "page number"
// @Param page_size query int false "page size"
// @Success 200 {object} response.Envelope{data=[]models.User}
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		SchoolID:  c.Query("school_id"),
		AgencyID:  c.Query("agency_id"),
		Search:    c.Query("search"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(strings.ToUpper(raw))
		filter.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get one account
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Update godoc
// @Summary Update an account
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "user id"
// @Param payload body service.UpdateUserInput true "fields to change"
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var input service.UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	user, err := h.service.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Deactivate godoc
// @Summary Deactivate an account
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
