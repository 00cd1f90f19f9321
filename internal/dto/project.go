package dto

import (
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
)

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID          uint64               `json:"id"`
	WorkspaceID uint64               `json:"workspace_id"`
	Name        string               `json:"name"`
	Key         string               `json:"key"`
	Description string               `json:"description,omitempty"`
	OwnerID     uint64               `json:"owner_id"`
	Status      models.ProjectStatus `json:"status"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ProjectMemberDTO represents a project membership in API responses
type ProjectMemberDTO struct {
	ProjectID uint64             `json:"project_id"`
	UserID    uint64             `json:"user_id"`
	Role      models.ProjectRole `json:"role"`
	AddedAt   time.Time          `json:"added_at"`
	User      *UserDTO           `json:"user,omitempty"`
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	return ProjectDTO{
		ID:          project.ID,
		WorkspaceID: project.WorkspaceID,
		Name:        project.Name,
		Key:         project.Key,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		Status:      project.Status,
		StartDate:   project.StartDate,
		EndDate:     project.EndDate,
		CreatedAt:   project.CreatedAt,
	}
}

// ToProjectMemberDTO converts a ProjectMember model to ProjectMemberDTO
func ToProjectMemberDTO(member models.ProjectMember) ProjectMemberDTO {
	dto := ProjectMemberDTO{
		ProjectID: member.ProjectID,
		UserID:    member.UserID,
		Role:      member.Role,
		AddedAt:   member.AddedAt,
	}

	if member.User.ID != 0 {
		user := ToUserDTO(member.User)
		dto.User = &user
	}

	return dto
}
