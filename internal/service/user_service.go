package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/eco-coord-api/internal/models"
	appErrors "github.com/noah-isme/eco-coord-api/pkg/errors"
)

// UserAdminStore is the persistence surface for account administration.
type UserAdminStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// CreateUserInput carries the fields for provisioning an account.
type CreateUserInput struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required"`
	SchoolID *string         `json:"school_id,omitempty"`
	AgencyID *string         `json:"agency_id,omitempty"`
}

// UpdateUserInput carries the mutable account fields. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// UserService provisions and administers portal accounts.
type UserService struct {
	store  UserAdminStore
	logger *zap.Logger
}

func NewUserService(store UserAdminStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, logger: logger}
}

// Create provisions a new account. Role scope fields must match the role:
// school accounts need a school, agency accounts an agency.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	switch input.Role {
	case models.RoleSchool:
		if input.SchoolID == nil || *input.SchoolID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "school accounts require a school_id")
		}
	case models.RoleAgency:
		if input.AgencyID == nil || *input.AgencyID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "agency accounts require an agency_id")
		}
	case models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	if _, err := s.store.FindByEmail(ctx, input.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, "INTERNAL_ERROR", 500, "failed to hash password")
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		FullName:     input.FullName,
		Role:         input.Role,
		SchoolID:     input.SchoolID,
		AgencyID:     input.AgencyID,
		Active:       true,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to create account")
	}
	return user, nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to load account")
	}
	return user, nil
}

// List pages through accounts.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to list accounts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies the provided fields to an account. Deactivating through
// Update also revokes the account's sessions.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && *input.Email != user.Email {
		if _, err := s.store.FindByEmail(ctx, *input.Email); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to check email")
		}
		user.Email = *input.Email
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	deactivated := false
	if input.Active != nil {
		deactivated = user.Active && !*input.Active
		user.Active = *input.Active
	}

	if err := s.store.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to update account")
	}
	if deactivated {
		if err := s.store.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Sugar().Warnw("failed to revoke sessions", "user_id", id, "error", err)
		}
	}
	return user, nil
}

// Deactivate disables an account and revokes its sessions.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, "DEPENDENCY_UNAVAILABLE", 503, "failed to deactivate account")
	}
	if err := s.store.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Sugar().Warnw("failed to revoke sessions", "user_id", id, "error", err)
	}
	return nil
}
