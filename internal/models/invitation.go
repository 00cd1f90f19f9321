package models

import (
	"time"

	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRevoked  InvitationStatus = "revoked"
)

// Invitation is a pending offer to join a workspace, addressed to an email
// that does not yet map to a known user. Accepting one creates the
// membership; the invitation itself is not a membership row.
type Invitation struct {
	ID          uint64           `gorm:"primarykey" json:"id"`
	WorkspaceID uint64           `gorm:"not null;index" json:"workspace_id"`
	Email       string           `gorm:"type:varchar(255);not null;index" json:"email"`
	Role        WorkspaceRole    `gorm:"type:varchar(20);not null" json:"role"`
	Token       string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"-"`
	InvitedBy   uint64           `gorm:"not null" json:"invited_by"`
	Status      InvitationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`

	// Relations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
}
