// Package eligibility decides whether a user may submit a new application
// and computes denial cooldowns. Everything here is a pure function of its
// arguments; the pending-application and cooldown checks that need stored
// state live in the application service.
package eligibility

import (
	"time"

	"github.com/yourorg/communityhub/internal/domain"
	"github.com/yourorg/communityhub/internal/hierarchy"
)

// entryDepartments are open to the applicant tier without prior membership
var entryDepartments = map[domain.Department]bool{
	domain.DepartmentCIV:  true,
	domain.DepartmentSAFR: true,
}

// Cooldown ladder. Boundaries are denial-count equality: the third and
// every later denial map to the 30-day bucket, clamped, not extrapolated.
const (
	firstDenialCooldown  = 24 * time.Hour
	secondDenialCooldown = 7 * 24 * time.Hour
	repeatDenialCooldown = 30 * 24 * time.Hour

	// InterviewRetryCooldown gates the second interview attempt after a
	// first failure
	InterviewRetryCooldown = 7 * 24 * time.Hour
)

// IsEntryDepartment reports whether the department accepts applicants
func IsEntryDepartment(d domain.Department) bool {
	return entryDepartments[d]
}

// CanSubmit reports whether a user at the given role may apply to the
// department at all. The applicant tier is restricted to entry departments;
// every other role may apply anywhere.
func CanSubmit(role hierarchy.Role, department domain.Department) bool {
	if role == hierarchy.RoleApplicant {
		return entryDepartments[department]
	}
	return true
}

// CooldownFor returns the reapplication cooldown earned by the given denial
// count. A zero count carries no cooldown.
func CooldownFor(denialCount int) (time.Duration, bool) {
	switch {
	case denialCount <= 0:
		return 0, false
	case denialCount == 1:
		return firstDenialCooldown, true
	case denialCount == 2:
		return secondDenialCooldown, true
	default:
		return repeatDenialCooldown, true
	}
}
