package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	OwnedWorkspaces      []Workspace       `gorm:"foreignKey:OwnerID" json:"-"`
	WorkspaceMemberships []WorkspaceMember `gorm:"foreignKey:UserID" json:"-"`
	ProjectMemberships   []ProjectMember   `gorm:"foreignKey:UserID" json:"-"`
	AssignedTasks        []Task            `gorm:"foreignKey:AssigneeID" json:"-"`
	ReportedTasks        []Task            `gorm:"foreignKey:ReporterID" json:"-"`
}
