package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/eco-coord-api/internal/dto"
	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/workflow"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// RequestOperations is the request service surface the handler calls.
type RequestOperations interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.Request, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Request, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.RequestQuery) ([]models.Request, error)
	Transition(ctx context.Context, claims *models.JWTClaims, id string, req dto.TransitionRequest) (*models.Request, error)
	OverrideStatus(ctx context.Context, claims *models.JWTClaims, id string, req dto.OverrideStatusRequest) (*models.Request, error)
	LetterPath(ctx context.Context, claims *models.JWTClaims, id string) (string, error)
}

// LetterAccess signs and resolves dispatch letter downloads.
type LetterAccess interface {
	Generate(requestID, relPath string) (string, time.Time, error)
	Parse(token string) (requestID, relPath string, expiresAt time.Time, err error)
}

// LetterOpener opens stored letters for streaming.
type LetterOpener interface {
	Open(filename string) (io.ReadCloser, error)
}

// RequestHandler serves the coordination request endpoints.
type RequestHandler struct {
	service  RequestOperations
	signer   LetterAccess
	letters  LetterOpener
	validate *validator.Validate
}

func NewRequestHandler(service RequestOperations, signer LetterAccess, letters LetterOpener) *RequestHandler {
	return &RequestHandler{
		service:  service,
		signer:   signer,
		letters:  letters,
		validate: validator.New(),
	}
}

// Create godoc
// @Summary Raise a coordination request
// @Tags requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "request payload"
// @Success 201 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	request, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List visible coordination requests
// @Tags requests
// @Produce json
// @Param status query string false "comma separated statuses"
// @Param school_id query string false "school scope (admin only)"
// @Param agency_id query string false "agency scope (admin only)"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} response.Envelope{data=[]models.Request}
// @Security BearerAuth
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.RequestQuery{
		SchoolID: c.Query("school_id"),
		AgencyID: c.Query("agency_id"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := workflow.Status(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status: "+part))
				return
			}
			query.Status = append(query.Status, status)
		}
	}

	requests, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if requests == nil {
		requests = []models.Request{}
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get one coordination request
// @Tags requests
// @Produce json
// @Param id path string true "request id"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Transition godoc
// @Summary Apply a workflow transition
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "request id"
// @Param payload body dto.TransitionRequest true "transition payload"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/transition [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	request, err := h.service.Transition(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		middleware.ObserveTransition(strings.ToUpper(req.Transition), "error")
		response.Error(c, err)
		return
	}
	middleware.ObserveTransition(strings.ToUpper(req.Transition), "ok")
	response.JSON(c, http.StatusOK, request, nil)
}

// Override godoc
// @Summary Force a request status outside the workflow
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "request id"
// @Param payload body dto.OverrideStatusRequest true "override payload"
// @Success 200 {object} response.Envelope{data=models.Request}
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/override-status [post]
func (h *RequestHandler) Override(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}

	request, err := h.service.OverrideStatus(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// LetterLink godoc
// @Summary Get a signed link for the dispatch letter
// @Tags requests
// @Produce json
// @Param id path string true "request id"
// @Success 200 {object} response.Envelope{data=dto.LetterLinkResponse}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /requests/{id}/letter [get]
func (h *RequestHandler) LetterLink(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id := c.Param("id")
	path, err := h.service.LetterPath(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.signer.Generate(id, path)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "INTERNAL_ERROR", http.StatusInternalServerError, "failed to sign link"))
		return
	}
	response.JSON(c, http.StatusOK, dto.LetterLinkResponse{
		RequestID: id,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// DownloadLetter godoc
// @Summary Download a dispatch letter via signed token
// @Tags requests
// @Produce application/pdf
// @Param token query string true "signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /letters/download [get]
func (h *RequestHandler) DownloadLetter(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	requestID, relPath, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "link invalid or expired"))
		return
	}

	file, err := h.letters.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "letter no longer available"))
		return
	}
	defer file.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="letter-`+requestID+`.pdf"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
