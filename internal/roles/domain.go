package roles

import (
	"time"

	"github.com/student-sections/sections-api/internal/authority"
)

// Role represents a stored role together with the capabilities it grants.
type Role struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Capabilities []authority.Capability `json:"capabilities"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Seed describes a role row that must exist.
type Seed struct {
	Name        authority.Role
	Description string
}

// DefaultSeeds are the roles every deployment starts with.
func DefaultSeeds() []Seed {
	return []Seed{
		{Name: authority.RoleAdmin, Description: "Administrator with full access"},
		{Name: authority.RoleUser, Description: "Regular user with read-only access"},
	}
}
