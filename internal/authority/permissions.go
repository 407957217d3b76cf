package authority

import "sort"

// Capability names an operation a role may be authorized to perform.
type Capability string

// Student and section capabilities are checked by the routes that own those
// resources; the account capabilities guard the auth endpoints.
const (
	CapReadStudent   Capability = "read-student"
	CapCreateStudent Capability = "create-student"
	CapUpdateStudent Capability = "update-student"
	CapDeleteStudent Capability = "delete-student"

	CapReadSection   Capability = "read-section"
	CapCreateSection Capability = "create-section"
	CapUpdateSection Capability = "update-section"
	CapDeleteSection Capability = "delete-section"

	CapEnrollStudent   Capability = "enroll-student"
	CapUnenrollStudent Capability = "unenroll-student"

	CapReadProfile    Capability = "read-profile"
	CapRefreshToken   Capability = "refresh-token"
	CapChangePassword Capability = "change-password"

	CapCreateUser Capability = "create-user"
	CapListUsers  Capability = "list-users"
	CapListRoles  Capability = "list-roles"
)

// AllCapabilities lists every capability in a stable order.
func AllCapabilities() []Capability {
	return []Capability{
		CapReadStudent, CapCreateStudent, CapUpdateStudent, CapDeleteStudent,
		CapReadSection, CapCreateSection, CapUpdateSection, CapDeleteSection,
		CapEnrollStudent, CapUnenrollStudent,
		CapReadProfile, CapRefreshToken, CapChangePassword,
		CapCreateUser, CapListUsers, CapListRoles,
	}
}

// capabilitiesFor is the static grant table. Adding a Role without a case
// here leaves it with no capabilities.
func capabilitiesFor(role Role) []Capability {
	switch role {
	case RoleAdmin:
		return AllCapabilities()
	case RoleUser:
		return []Capability{
			CapReadStudent,
			CapReadSection,
			CapReadProfile,
			CapRefreshToken,
			CapChangePassword,
		}
	default:
		return nil
	}
}

// Permissions is an immutable role to capability mapping.
type Permissions struct {
	grants map[Role]map[Capability]struct{}
}

// DefaultPermissions returns the mapping for every known role.
func DefaultPermissions() Permissions {
	table := make(map[Role][]Capability, len(Roles()))
	for _, role := range Roles() {
		table[role] = capabilitiesFor(role)
	}
	return NewPermissions(table)
}

// NewPermissions copies table into a Permissions value.
func NewPermissions(table map[Role][]Capability) Permissions {
	grants := make(map[Role]map[Capability]struct{}, len(table))
	for role, caps := range table {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		grants[role] = set
	}
	return Permissions{grants: grants}
}

// Has reports whether role is present in the mapping.
func (p Permissions) Has(role Role) bool {
	_, ok := p.grants[role]
	return ok
}

// Allows reports whether role is granted c. Unknown roles are denied.
func (p Permissions) Allows(role Role, c Capability) bool {
	set, ok := p.grants[role]
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// Capabilities returns the sorted capabilities granted to role.
func (p Permissions) Capabilities(role Role) []Capability {
	set := p.grants[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsZero reports whether the mapping was never initialised.
func (p Permissions) IsZero() bool {
	return p.grants == nil
}
