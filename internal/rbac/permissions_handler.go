package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/platform/httpx"
)

// PermissionsHandler exposes the capability table.
type PermissionsHandler struct {
	permissions authority.Permissions
	rbac        Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(permissions authority.Permissions, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{permissions: permissions, rbac: rbac}
}

// MountRoutes registers permission routes. Callers mount it behind rbac Authenticate.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(authority.CapListRoles))
		r.Get("/", h.listPermissions)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Grants(h.permissions))
}

// Grants lists every capability with the roles that hold it.
func Grants(permissions authority.Permissions) []CapabilityGrant {
	caps := authority.AllCapabilities()
	out := make([]CapabilityGrant, 0, len(caps))
	for _, c := range caps {
		grant := CapabilityGrant{Capability: c, Roles: []authority.Role{}}
		for _, role := range authority.Roles() {
			if permissions.Allows(role, c) {
				grant.Roles = append(grant.Roles, role)
			}
		}
		out = append(out, grant)
	}
	return out
}
