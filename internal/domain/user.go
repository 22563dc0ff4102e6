package domain

import (
	"time"

	"github.com/yourorg/communityhub/internal/hierarchy"
)

// Department identifies a community department
type Department string

const (
	DepartmentCIV         Department = "CIV"
	DepartmentSAFR        Department = "SAFR"
	DepartmentFHP         Department = "FHP"
	DepartmentBSO         Department = "BSO"
	DepartmentDOC         Department = "DOC"
	DepartmentComms       Department = "COMMS"
	DepartmentLeadership  Department = "LEADERSHIP"
	DepartmentDevelopment Department = "DEVELOPMENT"
)

// User represents a community member
type User struct {
	ID         int64
	Username   string // Unique username
	Role       hierarchy.Role
	Department Department // Empty until assigned
	ExternalID string     // Community-platform identity, set once at first external sign-in
	IsBanned   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(user *User) error
	GetByID(id int64) (*User, error)
	GetByUsername(username string) (*User, error)
	GetByExternalID(externalID string) (*User, error)
	// LinkExternalID sets the external identity exactly once; it fails when
	// the user already carries one.
	LinkExternalID(id int64, externalID string) error
	UpdateRole(id int64, role hierarchy.Role) error
	UpdateDepartment(id int64, department Department) error
	SetBanned(id int64, banned bool) error
	Delete(id int64) error
}
