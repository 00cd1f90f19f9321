package models

import "time"

type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "owner"
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleMember WorkspaceRole = "member"
	WorkspaceRoleViewer WorkspaceRole = "viewer"
)

// workspaceRoleLevels orders workspace roles. Levels are only comparable
// to other workspace role levels, never to project role levels.
var workspaceRoleLevels = map[WorkspaceRole]int{
	WorkspaceRoleOwner:  4,
	WorkspaceRoleAdmin:  3,
	WorkspaceRoleMember: 2,
	WorkspaceRoleViewer: 1,
}

// Level returns the ordinal rank of the role, 0 for an unknown role.
func (r WorkspaceRole) Level() int {
	return workspaceRoleLevels[r]
}

// Valid reports whether the role is one of the known workspace roles.
func (r WorkspaceRole) Valid() bool {
	_, ok := workspaceRoleLevels[r]
	return ok
}

type WorkspaceMember struct {
	WorkspaceID uint64        `gorm:"primarykey" json:"workspace_id"`
	UserID      uint64        `gorm:"primarykey" json:"user_id"`
	Role        WorkspaceRole `gorm:"type:varchar(20);not null" json:"role"`
	InvitedBy   *uint64       `json:"invited_by,omitempty"`
	JoinedAt    time.Time     `json:"joined_at"`

	// Relations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
