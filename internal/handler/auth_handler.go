package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/eco-coord-api/internal/middleware"
	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
	"github.com/noah-isme/eco-coord-api/pkg/response"
)

// AuthOperations is the auth service surface the handler calls.
type AuthOperations interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Logout(ctx context.Context, claims *models.JWTClaims) error
	ChangePassword(ctx context.Context, claims *models.JWTClaims, req models.ChangePasswordRequest) error
}

// AuthHandler serves the session endpoints.
type AuthHandler struct {
	service  AuthOperations
	validate *validator.Validate
}

func NewAuthHandler(service AuthOperations) *AuthHandler {
	return &AuthHandler{service: service, validate: validator.New()}
}

// Login godoc
// @Summary Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "credentials"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Refresh godoc
// @Summary Exchange a refresh token for a new session
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "refresh token"
// @Success 200 {object} response.Envelope{data=models.RefreshTokenResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Logout godoc
// @Summary Revoke all sessions for the caller
// @Tags auth
// @Produce json
// @Success 204
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "passwords"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, "VALIDATION_ERROR", http.StatusBadRequest, err.Error()))
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Return the caller's identity
// @Tags auth
// @Produce json
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info := models.UserInfo{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
	if claims.SchoolID != "" {
		schoolID := claims.SchoolID
		info.SchoolID = &schoolID
	}
	if claims.AgencyID != "" {
		agencyID := claims.AgencyID
		info.AgencyID = &agencyID
	}
	response.JSON(c, http.StatusOK, info, nil)
}
