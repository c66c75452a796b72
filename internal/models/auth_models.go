package models

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents a user in the system
type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FullName     *string    `json:"full_name,omitempty" db:"full_name"`
	Role         string     `json:"role" db:"role"`
	Status       string     `json:"status" db:"status"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// UserFilters narrows the user listing.
type UserFilters struct {
	Search string
	Role   string
}
