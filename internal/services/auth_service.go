package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/pkg/utils"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// --- Custom Service Errors ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrRoleNotFound       = errors.New("specified role not found")
	ErrForbidden          = errors.New("operation not permitted")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

const minPasswordLength = 8

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterUserRequest DTO
type RegisterUserRequest struct {
	Username string  `json:"username" binding:"required,max=64"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName *string `json:"full_name" binding:"omitempty,max=255"`
	Role     string  `json:"role"` // admin or staff, staff when empty
}

// UpdateUserRequest DTO. Nil fields are left unchanged.
type UpdateUserRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,max=255"`
	Role     *string `json:"role"`
	Status   *string `json:"status"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

// AuthResponse DTO
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// --- AuthService Interface ---
type AuthService interface {
	RegisterUser(ctx context.Context, req RegisterUserRequest, callerRole string) (*models.User, error)
	LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetUserProfile(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context, filters models.UserFilters) ([]models.User, error)
	UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) (*models.User, error)
	DeleteUser(ctx context.Context, userID, callerID int64) error
}

// --- authService Implementation ---
type authService struct {
	authRepo      repositories.AuthRepository
	db            *sqlx.DB
	jwtSecret     []byte
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(authRepo repositories.AuthRepository, db *sqlx.DB, jwtSecret string, jwtExp time.Duration) AuthService {
	return &authService{
		authRepo:      authRepo,
		db:            db,
		jwtSecret:     []byte(jwtSecret),
		jwtExpiration: jwtExp,
	}
}

func parseRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", models.RoleStaff:
		return models.RoleStaff, nil
	case models.RoleAdmin:
		return models.RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrRoleNotFound, role)
}

func parseStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.UserStatusActive:
		return models.UserStatusActive, nil
	case models.UserStatusInactive:
		return models.UserStatusInactive, nil
	}
	return "", validationError("unknown status %q", status)
}

// RegisterUser creates an account. While no user exists the first account is
// created as admin; afterwards only admins may register users.
func (s *authService) RegisterUser(ctx context.Context, req RegisterUserRequest, callerRole string) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if utils.IsEmpty(username) {
		return nil, validationError("username is required")
	}
	if !utils.IsValidPasswordLength(req.Password, minPasswordLength) {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}

	// usernames match case-insensitively at login
	if _, _, err := s.authRepo.FindUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrUsernameExists, username)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.authRepo.CountUsers(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	if existing == 0 {
		role = models.RoleAdmin
	} else if callerRole != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can register users", ErrForbidden)
	}

	user := models.User{
		Username: username,
		FullName: utils.NewNullString(utils.DerefString(req.FullName, "")),
		Role:     role,
		Status:   models.UserStatusActive,
	}
	if _, err := s.authRepo.CreateUser(ctx, tx, &user, string(hashed)); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameExists, username)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &user, nil
}

// LoginUser handles user login and token generation.
func (s *authService) LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, storedHash, err := s.authRepo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrUserInactive
	}

	token, err := utils.GenerateAccessToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	now := nowFunc().UTC()
	if err := s.authRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return &AuthResponse{User: user, AccessToken: token, ExpiresAt: now.Add(s.jwtExpiration)}, nil
}

// GetUserProfile retrieves a user's profile by their ID.
func (s *authService) GetUserProfile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.authRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context, filters models.UserFilters) ([]models.User, error) {
	if filters.Role != "" {
		role, err := parseRole(filters.Role)
		if err != nil {
			return nil, err
		}
		filters.Role = role
	}
	return s.authRepo.ListUsers(ctx, filters)
}

// UpdateUser changes profile, role, status and optionally the password.
func (s *authService) UpdateUser(ctx context.Context, userID int64, req UpdateUserRequest) (*models.User, error) {
	user, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		user.FullName = utils.NewNullString(*req.FullName)
	}
	if req.Role != nil {
		if user.Role, err = parseRole(*req.Role); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if user.Status, err = parseStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	var hashed []byte
	if req.Password != nil {
		if !utils.IsValidPasswordLength(*req.Password, minPasswordLength) {
			return nil, validationError("password must be at least %d characters", minPasswordLength)
		}
		if hashed, err = bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.authRepo.UpdateUser(ctx, tx, user); err != nil {
		return nil, err
	}
	if hashed != nil {
		if err := s.authRepo.UpdatePassword(ctx, tx, userID, string(hashed)); err != nil {
			return nil, err
		}
	}
	if user.Role != models.RoleAdmin || !user.IsActive() {
		admins, err := s.authRepo.CountUsers(ctx, tx, models.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins == 0 {
			return nil, fmt.Errorf("%w: at least one admin must remain", ErrForbidden)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account. Users cannot delete themselves.
func (s *authService) DeleteUser(ctx context.Context, userID, callerID int64) error {
	if userID == callerID {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}
	if err := s.authRepo.DeleteUser(ctx, s.db, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
