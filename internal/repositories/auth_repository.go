package repositories

import (
	"context"
	"strings"
	"time"

	"clinic_inventory_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AuthRepository defines the interface for user account database operations.
type AuthRepository interface {
	CreateUser(ctx context.Context, exec SQLExecutor, user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) // User, HashedPassword, Error
	FindUserByID(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context, filters models.UserFilters) ([]models.User, error)
	UpdateUser(ctx context.Context, exec SQLExecutor, user *models.User) error
	UpdatePassword(ctx context.Context, exec SQLExecutor, userID int64, hashedPassword string) error
	DeleteUser(ctx context.Context, exec SQLExecutor, userID int64) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
	CountUsers(ctx context.Context, exec SQLExecutor, role string) (int, error)
}

type authRepository struct {
	db *sqlx.DB
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sqlx.DB) AuthRepository {
	return &authRepository{db: db}
}

const userColumns = `id, username, full_name, role, status, last_login, created_at, updated_at`

// CreateUser inserts a new user. Username uniqueness maps to ErrDuplicateKey.
func (r *authRepository) CreateUser(ctx context.Context, exec SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	now := time.Now().UTC()
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	id, err := insertReturningID(ctx, exec,
		`INSERT INTO users (username, password_hash, full_name, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, hashedPassword, user.FullName, user.Role, user.Status, now, now)
	if err != nil {
		return 0, wrapError(err, "creating user "+user.Username)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return id, nil
}

// FindUserByUsername retrieves a user and their hashed password.
func (r *authRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT `+userColumns+`, password_hash FROM users WHERE LOWER(username) = LOWER(?)`), strings.TrimSpace(username))
	if err != nil {
		return nil, "", wrapError(err, "finding user by username")
	}
	hash := user.PasswordHash
	user.PasswordHash = ""
	return &user, hash, nil
}

func (r *authRepository) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	if err != nil {
		return nil, wrapError(err, "finding user by id")
	}
	return &user, nil
}

func (r *authRepository) ListUsers(ctx context.Context, filters models.UserFilters) ([]models.User, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + userColumns + ` FROM users`)
	var conditions []string
	var args []interface{}
	if filters.Search != "" {
		conditions = append(conditions, "(LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?)")
		args = append(args, likePattern(filters.Search), likePattern(filters.Search))
	}
	if filters.Role != "" {
		conditions = append(conditions, "role = ?")
		args = append(args, filters.Role)
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(b.String()), args...); err != nil {
		return nil, wrapError(err, "listing users")
	}
	return users, nil
}

func (r *authRepository) UpdateUser(ctx context.Context, exec SQLExecutor, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE users SET full_name = ?, role = ?, status = ?, updated_at = ? WHERE id = ?`),
		user.FullName, user.Role, user.Status, user.UpdatedAt, user.ID)
	if err != nil {
		return wrapError(err, "updating user")
	}
	return requireRow(res, "updating user")
}

func (r *authRepository) UpdatePassword(ctx context.Context, exec SQLExecutor, userID int64, hashedPassword string) error {
	res, err := exec.ExecContext(ctx, rebind(exec,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`), hashedPassword, time.Now().UTC(), userID)
	if err != nil {
		return wrapError(err, "updating password")
	}
	return requireRow(res, "updating password")
}

func (r *authRepository) DeleteUser(ctx context.Context, exec SQLExecutor, userID int64) error {
	res, err := exec.ExecContext(ctx, rebind(exec, `DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return wrapError(err, "deleting user")
	}
	return requireRow(res, "deleting user")
}

func (r *authRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at.UTC(), userID)
	return wrapError(err, "updating last login")
}

// CountUsers counts accounts, optionally limited to a role.
func (r *authRepository) CountUsers(ctx context.Context, exec SQLExecutor, role string) (int, error) {
	query := `SELECT COUNT(*) FROM users`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	var n int
	if err := sqlx.GetContext(ctx, exec, &n, rebind(exec, query), args...); err != nil {
		return 0, wrapError(err, "counting users")
	}
	return n, nil
}
