package models

import "time"

type ProjectRole string

const (
	ProjectRoleLead      ProjectRole = "lead"
	ProjectRoleDeveloper ProjectRole = "developer"
	ProjectRoleViewer    ProjectRole = "viewer"
)

// projectRoleLevels orders project roles. The scale is independent of the
// workspace role scale.
var projectRoleLevels = map[ProjectRole]int{
	ProjectRoleLead:      3,
	ProjectRoleDeveloper: 2,
	ProjectRoleViewer:    1,
}

// Level returns the ordinal rank of the role, 0 for an unknown role.
func (r ProjectRole) Level() int {
	return projectRoleLevels[r]
}

// Valid reports whether the role is one of the known project roles.
func (r ProjectRole) Valid() bool {
	_, ok := projectRoleLevels[r]
	return ok
}

type ProjectMember struct {
	ProjectID uint64      `gorm:"primarykey" json:"project_id"`
	UserID    uint64      `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole `gorm:"type:varchar(20);not null" json:"role"`
	AddedAt   time.Time   `json:"added_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
