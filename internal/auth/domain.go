package auth

import (
	"context"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
	"github.com/student-sections/sections-api/internal/users"
)

// TokenIssuer mints, refreshes and revokes access tokens.
// *authority.Authority satisfies it.
type TokenIssuer interface {
	Authenticate(ctx context.Context, identifier, credential string) (authority.Token, error)
	Refresh(ctx context.Context, p authority.AuthenticatedPrincipal) (authority.Token, error)
	Revoke(ctx context.Context, p authority.AuthenticatedPrincipal) error
}

// Accounts owns the principal store. *users.Service satisfies it.
type Accounts interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	CreateByAdmin(ctx context.Context, actor authority.AuthenticatedPrincipal, in users.CreateInput) (users.User, error)
	ChangePassword(ctx context.Context, principalID string, in users.ChangePasswordInput) error
	Get(ctx context.Context, principalID string) (users.User, error)
}

// EventPublisher hands auth events to the background audit trail.
type EventPublisher interface {
	Publish(ctx context.Context, event shared.AuthEvent) error
}

// LoginRequest is the credential payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}
