package dto

import (
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`
}

// WorkspaceDTO represents a workspace in API responses
type WorkspaceDTO struct {
	ID          uint64                 `json:"id"`
	Name        string                 `json:"name"`
	Slug        string                 `json:"slug"`
	Description string                 `json:"description,omitempty"`
	OwnerID     uint64                 `json:"owner_id"`
	Status      models.WorkspaceStatus `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
}

// WorkspaceMemberDTO represents a workspace membership in API responses
type WorkspaceMemberDTO struct {
	WorkspaceID uint64               `json:"workspace_id"`
	UserID      uint64               `json:"user_id"`
	Role        models.WorkspaceRole `json:"role"`
	JoinedAt    time.Time            `json:"joined_at"`
	User        *UserDTO             `json:"user,omitempty"`
	Workspace   *WorkspaceDTO        `json:"workspace,omitempty"`
}

// InvitationDTO represents a pending invitation in API responses. The token
// is only included in the response to the inviter.
type InvitationDTO struct {
	ID          uint64                  `json:"id"`
	WorkspaceID uint64                  `json:"workspace_id"`
	Email       string                  `json:"email"`
	Role        models.WorkspaceRole    `json:"role"`
	Token       string                  `json:"token,omitempty"`
	Status      models.InvitationStatus `json:"status"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	}
}

// ToWorkspaceDTO converts a Workspace model to WorkspaceDTO
func ToWorkspaceDTO(workspace models.Workspace) WorkspaceDTO {
	return WorkspaceDTO{
		ID:          workspace.ID,
		Name:        workspace.Name,
		Slug:        workspace.Slug,
		Description: workspace.Description,
		OwnerID:     workspace.OwnerID,
		Status:      workspace.Status,
		CreatedAt:   workspace.CreatedAt,
	}
}

// ToWorkspaceMemberDTO converts a WorkspaceMember model to WorkspaceMemberDTO
func ToWorkspaceMemberDTO(member models.WorkspaceMember) WorkspaceMemberDTO {
	dto := WorkspaceMemberDTO{
		WorkspaceID: member.WorkspaceID,
		UserID:      member.UserID,
		Role:        member.Role,
		JoinedAt:    member.JoinedAt,
	}

	// Include relations if preloaded
	if member.User.ID != 0 {
		user := ToUserDTO(member.User)
		dto.User = &user
	}
	if member.Workspace.ID != 0 {
		workspace := ToWorkspaceDTO(member.Workspace)
		dto.Workspace = &workspace
	}

	return dto
}

// ToInvitationDTO converts an Invitation model to InvitationDTO
func ToInvitationDTO(invitation models.Invitation, includeToken bool) InvitationDTO {
	dto := InvitationDTO{
		ID:          invitation.ID,
		WorkspaceID: invitation.WorkspaceID,
		Email:       invitation.Email,
		Role:        invitation.Role,
		Status:      invitation.Status,
		ExpiresAt:   invitation.ExpiresAt,
	}
	if includeToken {
		dto.Token = invitation.Token
	}
	return dto
}
