package hierarchy

import "testing"

func TestRankOrdering(t *testing.T) {
	prev := -1
	for _, r := range Roles() {
		rank, ok := Rank(r)
		if !ok {
			t.Fatalf("role %s missing from rank table", r)
		}
		if rank <= prev {
			t.Fatalf("role %s has rank %d, expected > %d", r, rank, prev)
		}
		prev = rank
	}

	if !Outranks(RoleHeadAdmin, RoleSeniorAdmin) {
		t.Errorf("HEAD_ADMIN should outrank SENIOR_ADMIN")
	}
	if Outranks(RoleStaff, RoleStaff) {
		t.Errorf("a role must not outrank itself")
	}
	if Outranks(RoleApplicant, RoleOwner) {
		t.Errorf("APPLICANT should not outrank OWNER")
	}
}

func TestCapabilityBandsExhaustiveAndDisjoint(t *testing.T) {
	for _, r := range Roles() {
		count := 0
		if IsAdministrative(r) {
			count++
		}
		if IsStaff(r) {
			count++
		}
		if IsBasic(r) {
			count++
		}
		if count != 1 {
			t.Errorf("role %s belongs to %d bands, expected exactly 1", r, count)
		}
	}
}

func TestAssignableRolesNeverIncludeOwnTierOrAbove(t *testing.T) {
	for _, actor := range Roles() {
		actorRank, _ := Rank(actor)
		for _, granted := range AssignableRoles(actor) {
			if granted == actor {
				t.Errorf("actor %s can assign its own tier", actor)
			}
			grantedRank, ok := Rank(granted)
			if !ok {
				t.Fatalf("assignable set for %s contains unknown role %s", actor, granted)
			}
			if grantedRank <= actorRank {
				t.Errorf("actor %s (rank %d) can assign %s (rank %d)", actor, actorRank, granted, grantedRank)
			}
		}
	}
}

func TestUnknownRole(t *testing.T) {
	if _, ok := Rank(Role("SUPERVISOR")); ok {
		t.Errorf("unknown role should have no rank")
	}
	if Known("SUPERVISOR") {
		t.Errorf("unknown role should not be known")
	}
	if roles := AssignableRoles("SUPERVISOR"); len(roles) != 0 {
		t.Errorf("unknown actor should have an empty assignable set, got %v", roles)
	}
	if IsAdministrative("SUPERVISOR") || IsStaff("SUPERVISOR") || IsBasic("SUPERVISOR") {
		t.Errorf("unknown role should not belong to any band")
	}
}

func TestOwnerIsOnlyOverrideHolder(t *testing.T) {
	for _, r := range Roles() {
		if HasOverride(r) != (r == RoleOwner) {
			t.Errorf("override status wrong for %s", r)
		}
	}
}
