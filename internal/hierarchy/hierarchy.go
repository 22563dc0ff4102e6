package hierarchy

// Role represents a user's position in the community hierarchy
type Role string

const (
	RoleOwner       Role = "OWNER"
	RoleHeadAdmin   Role = "HEAD_ADMIN"
	RoleSeniorAdmin Role = "SENIOR_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleModerator   Role = "MODERATOR"
	RoleStaff       Role = "STAFF"
	RoleMember      Role = "MEMBER"
	RoleApplicant   Role = "APPLICANT"
)

// roleOrder lists every role, highest authority first. The index into this
// slice is the role's rank: lower rank means more authority. All comparisons
// between roles must go through this table; nothing else may re-derive order.
var roleOrder = []Role{
	RoleOwner,
	RoleHeadAdmin,
	RoleSeniorAdmin,
	RoleAdmin,
	RoleModerator,
	RoleStaff,
	RoleMember,
	RoleApplicant,
}

// roleRanks is the reverse index of roleOrder
var roleRanks = func() map[Role]int {
	ranks := make(map[Role]int, len(roleOrder))
	for i, r := range roleOrder {
		ranks[r] = i
	}
	return ranks
}()

var administrativeRoles = map[Role]bool{
	RoleOwner:       true,
	RoleHeadAdmin:   true,
	RoleSeniorAdmin: true,
	RoleAdmin:       true,
}

var staffRoles = map[Role]bool{
	RoleModerator: true,
	RoleStaff:     true,
}

// Rank returns the authority rank of a role; lower means more authority.
// Unknown roles report false, never an error: the table is advisory and
// must not fault on role strings it has never seen.
func Rank(r Role) (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

// Known reports whether the role appears in the hierarchy
func Known(r Role) bool {
	_, ok := roleRanks[r]
	return ok
}

// Roles returns every role in the hierarchy, highest authority first
func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// IsAdministrative reports whether the role is in the administrative band
func IsAdministrative(r Role) bool {
	return administrativeRoles[r]
}

// IsStaff reports whether the role is in the staff band
func IsStaff(r Role) bool {
	return staffRoles[r]
}

// IsBasic reports whether the role is a known role outside the
// administrative and staff bands
func IsBasic(r Role) bool {
	return Known(r) && !administrativeRoles[r] && !staffRoles[r]
}

// Outranks reports whether a holds strictly more authority than b.
// Unknown roles never outrank anything.
func Outranks(a, b Role) bool {
	ra, ok := roleRanks[a]
	if !ok {
		return false
	}
	rb, ok := roleRanks[b]
	if !ok {
		return true
	}
	return ra < rb
}

// AssignableRoles returns the roles an actor may grant: every role ranked
// strictly below the actor's own tier. An unknown actor role yields an
// empty set.
func AssignableRoles(actor Role) []Role {
	rank, ok := roleRanks[actor]
	if !ok {
		return nil
	}
	out := make([]Role, 0, len(roleOrder)-rank-1)
	for i := rank + 1; i < len(roleOrder); i++ {
		out = append(out, roleOrder[i])
	}
	return out
}

// HasOverride reports whether the role is the full-override tier, which
// bypasses rank-based assignment restrictions
func HasOverride(r Role) bool {
	return r == RoleOwner
}
