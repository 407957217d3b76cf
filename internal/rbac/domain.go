package rbac

import (
	"context"

	"github.com/student-sections/sections-api/internal/authority"
)

// TokenAuthority validates bearer tokens and answers capability checks.
// *authority.Authority satisfies it.
type TokenAuthority interface {
	ValidateToken(ctx context.Context, raw string) (authority.AuthenticatedPrincipal, error)
	Authorize(p authority.AuthenticatedPrincipal, c authority.Capability) bool
}

// CapabilityGrant lists the roles holding a capability.
type CapabilityGrant struct {
	Capability authority.Capability `json:"capability"`
	Roles      []authority.Role     `json:"roles"`
}
