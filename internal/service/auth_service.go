package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/pkg/config"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// UserStore is the account persistence surface the auth service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// AuthService issues and refreshes JWT sessions.
type AuthService struct {
	store  UserStore
	cfg    config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(store UserStore, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{store: store, cfg: cfg, logger: logger}
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load account")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to sign token")
	}
	refreshToken, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Sugar().Warnw("failed to record login time", "user_id", user.ID, "error", err)
	}
	s.writeAudit(ctx, user.ID, models.AuditActionLogin, req.IP, req.UserAgent)

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.Expiration.Seconds()),
		User:         userInfo(user),
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// Refresh rotates a refresh token and returns a new pair.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	stored, err := s.store.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token invalid or expired")
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load session")
	}
	if !stored.Usable(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token invalid or expired")
	}

	user, err := s.store.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := s.store.RevokeRefreshToken(ctx, stored.ID); err != nil {
		s.logger.Sugar().Warnw("failed to revoke rotated token", "token_id", stored.ID, "error", err)
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to sign token")
	}
	refreshToken, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.Expiration.Seconds()),
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// Logout revokes every active session for the user.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims) error {
	if err := s.store.RevokeUserRefreshTokens(ctx, claims.UserID); err != nil {
		return appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to revoke sessions")
	}
	s.writeAudit(ctx, claims.UserID, models.AuditActionLogout, "", "")
	return nil
}

// ChangePassword verifies the old password and rotates the hash and
// sessions.
func (s *AuthService) ChangePassword(ctx context.Context, claims *models.JWTClaims, req models.ChangePasswordRequest) error {
	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to hash password")
	}
	if err := s.store.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to update password")
	}
	if err := s.store.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Sugar().Warnw("failed to revoke sessions after password change", "user_id", user.ID, "error", err)
	}
	s.writeAudit(ctx, user.ID, models.AuditActionPasswordChange, "", "")
	return nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) signAccessToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Expiration)),
		},
	}
	if user.SchoolID != nil {
		claims.SchoolID = *user.SchoolID
	}
	if user.AgencyID != nil {
		claims.AgencyID = *user.AgencyID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, ip, userAgent string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to generate token")
	}
	token := hex.EncodeToString(raw)
	err := s.store.CreateRefreshToken(ctx, &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.cfg.RefreshExpiration),
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		return "", appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to persist session")
	}
	return token, nil
}

func (s *AuthService) writeAudit(ctx context.Context, userID, action, ip, userAgent string) {
	entry := &models.AuditLog{
		UserID:    &userID,
		Action:    action,
		Resource:  "auth",
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("audit write failed", "action", action, "user_id", userID, "error", err)
	}
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		SchoolID: user.SchoolID,
		AgencyID: user.AgencyID,
	}
}
