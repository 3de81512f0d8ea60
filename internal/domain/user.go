package domain

import (
	"context"
	"time"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User represents a registered account. Students and admins share the table.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateRole(ctx context.Context, id int64, role string) error
}
