package users

import (
	"time"

	"github.com/student-sections/sections-api/internal/authority"
)

// User represents an account as exposed by the API.
type User struct {
	ID        int64          `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Role      authority.Role `json:"role"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Account is a User together with its stored credential hash.
type Account struct {
	User
	PasswordHash string
}

// NewUser holds the columns written when an account is created.
type NewUser struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         authority.Role
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,password"`
}

// CreateInput is the administrator account creation payload.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"required,role"`
}

// ChangePasswordInput replaces the caller's password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}
