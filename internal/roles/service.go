package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/student-sections/sections-api/internal/authority"
)

// ErrUnmappedRole is returned when a stored role has no entry in the
// permission mapping.
var ErrUnmappedRole = errors.New("roles: stored role missing from permission mapping")

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	EnsureRoles(ctx context.Context, seeds []Seed) (int, error)
}

// Service handles role business logic.
type Service struct {
	repo        RepositoryPort
	permissions authority.Permissions
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, permissions authority.Permissions) *Service {
	if permissions.IsZero() {
		permissions = authority.DefaultPermissions()
	}
	return &Service{repo: repo, permissions: permissions}
}

// ListRoles returns all roles with their granted capabilities.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	if roles == nil {
		roles = []Role{}
	}
	for i := range roles {
		roles[i].Capabilities = s.permissions.Capabilities(authority.Role(roles[i].Name))
	}
	return roles, nil
}

// EnsureDefaults creates the default roles that are missing.
func (s *Service) EnsureDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.EnsureRoles(ctx, DefaultSeeds())
	if err != nil {
		return 0, fmt.Errorf("roles: ensure defaults: %w", err)
	}
	return n, nil
}

// VerifyMapping fails when a stored role is not present in the permission
// mapping.
func (s *Service) VerifyMapping(ctx context.Context) error {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("roles: verify mapping: %w", err)
	}
	var unmapped []string
	for _, role := range roles {
		if !s.permissions.Has(authority.Role(role.Name)) {
			unmapped = append(unmapped, role.Name)
		}
	}
	if len(unmapped) > 0 {
		return fmt.Errorf("%w: %s", ErrUnmappedRole, strings.Join(unmapped, ", "))
	}
	return nil
}
