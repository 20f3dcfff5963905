package models

import "errors"

// Role represents a user's position in the approval chain
type Role string

const (
	RoleUser          Role = "user"          // Requester
	RoleSupervisor    Role = "supervisor"    // Level-1 approver
	RoleDirector      Role = "director"      // Level-2 approver
	RoleAdministrator Role = "administrator" // Full authority
)

var ErrInvalidRole = errors.New("invalid role")

// User represents an account consumed read-only by the approval core
type User struct {
	ID    int64   `json:"id" db:"id" bson:"_id,omitempty"`
	Name  string  `json:"name" db:"name" bson:"name"`
	Email string  `json:"email" db:"email" bson:"email"`
	Role  Role    `json:"role" db:"role" bson:"role"`
	Phone *string `json:"phone,omitempty" db:"phone" bson:"phone,omitempty"`
}

// IsApprover reports whether the role receives reminder and advisory notifications
func (r Role) IsApprover() bool {
	return r == RoleSupervisor || r == RoleAdministrator || r == RoleDirector
}

// ValidateRole checks if the role is a known one
func ValidateRole(role Role) error {
	switch role {
	case RoleUser, RoleSupervisor, RoleDirector, RoleAdministrator:
		return nil
	default:
		return ErrInvalidRole
	}
}
