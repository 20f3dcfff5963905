package authz

import "github.com/sentryops/bypassguard/internal/domain/models"

// ApprovalLevel is the tier a validator must hold to decide a request
type ApprovalLevel int

const (
	LevelNone ApprovalLevel = 0
	LevelOne  ApprovalLevel = 1 // supervisor
	LevelTwo  ApprovalLevel = 2 // director / administrator
)

// MappingVersion identifies the role mapping in effect. Bump when the table
// below changes so deployments can be audited against it.
const MappingVersion = 1

// Mapping is an immutable role-to-level lookup built once at startup.
// Role definitions are never mutated at runtime.
type Mapping struct {
	levels map[models.Role]ApprovalLevel
}

// NewMapping builds the versioned role mapping
func NewMapping() *Mapping {
	return &Mapping{
		levels: map[models.Role]ApprovalLevel{
			models.RoleUser:          LevelNone,
			models.RoleSupervisor:    LevelOne,
			models.RoleDirector:      LevelTwo,
			models.RoleAdministrator: LevelTwo,
		},
	}
}

// LevelFor returns the approval level a role holds
func (m *Mapping) LevelFor(role models.Role) ApprovalLevel {
	return m.levels[role]
}

// RequiredLevel returns the approval level a request priority demands
func RequiredLevel(priority models.Priority) ApprovalLevel {
	if priority == models.PriorityHigh {
		return LevelTwo
	}
	return LevelOne
}

// CanValidate reports whether a role may decide a request of the given priority
func (m *Mapping) CanValidate(role models.Role, priority models.Priority) bool {
	return m.LevelFor(role) >= RequiredLevel(priority)
}
