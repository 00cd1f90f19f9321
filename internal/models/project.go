package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusArchived  ProjectStatus = "archived"
	ProjectStatusCompleted ProjectStatus = "completed"
)

type Project struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	WorkspaceID uint64         `gorm:"not null;uniqueIndex:idx_projects_workspace_key;index" json:"workspace_id"`
	Name        string         `gorm:"type:varchar(100);not null" json:"name"`
	Key         string         `gorm:"type:varchar(10);not null;uniqueIndex:idx_projects_workspace_key" json:"key"`
	Description string         `gorm:"type:text" json:"description"`
	OwnerID     uint64         `gorm:"not null;index" json:"owner_id"`
	Status      ProjectStatus  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	StartDate   *time.Time     `json:"start_date"`
	EndDate     *time.Time     `json:"end_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Workspace Workspace       `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Owner     User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members   []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Tasks     []Task          `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
