package models

import "time"

type EntityType string

const (
	EntityTypeWorkspace EntityType = "workspace"
	EntityTypeProject   EntityType = "project"
	EntityTypeTask      EntityType = "task"
	EntityTypeComment   EntityType = "comment"
)

// Activity actions recorded in the audit trail.
const (
	ActionWorkspaceCreated    = "workspace_created"
	ActionWorkspaceUpdated    = "workspace_updated"
	ActionMemberAdded         = "member_added"
	ActionMemberRoleChanged   = "member_role_changed"
	ActionMemberRemoved       = "member_removed"
	ActionMemberInvited       = "member_invited"
	ActionProjectCreated      = "project_created"
	ActionProjectUpdated      = "project_updated"
	ActionProjectDeleted      = "project_deleted"
	ActionTaskCreated         = "task_created"
	ActionTaskStatusChanged   = "task_status_changed"
	ActionTaskAssigneeChanged = "task_assignee_changed"
	ActionTaskPriorityChanged = "task_priority_changed"
	ActionTaskDeleted         = "task_deleted"
	ActionCommentAdded        = "comment_added"
)

// ActivityLog is an append-only audit record. Rows are written in the same
// transaction as the mutation they describe and are never updated or deleted.
type ActivityLog struct {
	ID          uint64     `gorm:"primarykey" json:"id"`
	WorkspaceID *uint64    `gorm:"index" json:"workspace_id,omitempty"`
	ProjectID   *uint64    `gorm:"index" json:"project_id,omitempty"`
	TaskID      *uint64    `gorm:"index" json:"task_id,omitempty"`
	UserID      uint64     `gorm:"not null;index" json:"user_id"`
	Action      string     `gorm:"type:varchar(50);not null" json:"action"`
	EntityType  EntityType `gorm:"type:varchar(20);not null" json:"entity_type"`
	Metadata    string     `gorm:"type:text" json:"metadata"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
