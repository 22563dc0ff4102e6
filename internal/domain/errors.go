package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/communityhub/internal/hierarchy"
)

// Storage-level sentinels surfaced by repositories
var (
	ErrNotFound         = errors.New("not found")
	ErrPendingExists    = errors.New("pending application already exists")
	ErrStaleApplication = errors.New("application was modified concurrently")
	ErrAlreadyLinked    = errors.New("external identity already linked")
)

// EligibilityReason classifies why a submission was refused
type EligibilityReason string

const (
	EligibilityRoleRestricted   EligibilityReason = "role_restricted"
	EligibilityPendingExists    EligibilityReason = "pending_exists"
	EligibilityCooldownActive   EligibilityReason = "cooldown_active"
	EligibilityTemplateInactive EligibilityReason = "template_inactive"
)

// EligibilityError means the user may not submit right now. Always
// recoverable: the caller can wait out the cooldown or pick another
// department.
type EligibilityError struct {
	Reason        EligibilityReason
	Department    Department
	CooldownUntil *time.Time
}

func (e *EligibilityError) Error() string {
	switch e.Reason {
	case EligibilityRoleRestricted:
		return fmt.Sprintf("not eligible to apply to department %s", e.Department)
	case EligibilityPendingExists:
		return fmt.Sprintf("a pending application already exists for department %s", e.Department)
	case EligibilityCooldownActive:
		return fmt.Sprintf("application cooldown active until %s", e.CooldownUntil.UTC().Format(time.RFC3339))
	case EligibilityTemplateInactive:
		return fmt.Sprintf("application template for department %s is not accepting submissions", e.Department)
	default:
		return "not eligible to apply"
	}
}

// PermissionError means the actor lacks the rank or override for the
// requested change. Never retried automatically.
type PermissionError struct {
	Action    string
	ActorRole hierarchy.Role
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: role %s cannot %s", e.ActorRole, e.Action)
}

// StateError means the requested action is invalid for the application's
// current status combination. Indicates a caller bug or a lost race.
type StateError struct {
	Op              string
	Status          Status
	InterviewStatus InterviewStatus
}

func (e *StateError) Error() string {
	if e.InterviewStatus != InterviewNone {
		return fmt.Sprintf("%s not valid in status %s/%s", e.Op, e.Status, e.InterviewStatus)
	}
	return fmt.Sprintf("%s not valid in status %s", e.Op, e.Status)
}

// ExternalSyncError means the community-platform lookup failed after the
// single permitted retry. Best-effort callers treat it as "no role change
// this time"; it never blocks a sign-in.
type ExternalSyncError struct {
	Stage string
	Err   error
}

func (e *ExternalSyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external role sync failed (%s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("external role sync failed (%s)", e.Stage)
}

func (e *ExternalSyncError) Unwrap() error {
	return e.Err
}
