package repository

import (
	"github.com/ktsujino/projecthub-api/internal/models"
	"gorm.io/gorm"
)

// GormWorkspaceRepository is a GORM implementation of WorkspaceRepository
type GormWorkspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &GormWorkspaceRepository{db: db}
}

// Create creates a new workspace
func (r *GormWorkspaceRepository) Create(workspace *models.Workspace) error {
	return r.db.Create(workspace).Error
}

// FindByID finds a workspace by ID
func (r *GormWorkspaceRepository) FindByID(id uint64) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.First(&workspace, id).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// FindBySlug finds a workspace by its unique slug
func (r *GormWorkspaceRepository) FindBySlug(slug string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.Where("slug = ?", slug).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// Update updates a workspace
func (r *GormWorkspaceRepository) Update(workspace *models.Workspace) error {
	return r.db.Save(workspace).Error
}

// AddMember adds a member to a workspace
func (r *GormWorkspaceRepository) AddMember(member *models.WorkspaceMember) error {
	return r.db.Create(member).Error
}

// FindMember finds a specific workspace member
func (r *GormWorkspaceRepository) FindMember(workspaceID, userID uint64) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	if err := r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateMemberRole changes an existing member's role
func (r *GormWorkspaceRepository) UpdateMemberRole(workspaceID, userID uint64, role models.WorkspaceRole) error {
	return r.db.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Update("role", role).Error
}

// RemoveMember removes a member from a workspace
func (r *GormWorkspaceRepository) RemoveMember(workspaceID, userID uint64) error {
	return r.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&models.WorkspaceMember{}).Error
}

// ListMembers lists all members of a workspace
func (r *GormWorkspaceRepository) ListMembers(workspaceID uint64) ([]models.WorkspaceMember, error) {
	var members []models.WorkspaceMember
	if err := r.db.Preload("User").
		Where("workspace_id = ?", workspaceID).
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMembershipsByUserID lists all workspaces a user is a member of
func (r *GormWorkspaceRepository) ListMembershipsByUserID(userID uint64) ([]models.WorkspaceMember, error) {
	var memberships []models.WorkspaceMember
	if err := r.db.Preload("Workspace").
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// CreateInvitation records a pending invitation
func (r *GormWorkspaceRepository) CreateInvitation(invitation *models.Invitation) error {
	return r.db.Create(invitation).Error
}

// FindPendingInvitation finds a pending invitation by workspace and email
func (r *GormWorkspaceRepository) FindPendingInvitation(workspaceID uint64, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.Where("workspace_id = ? AND email = ? AND status = ?",
		workspaceID, email, models.InvitationStatusPending).
		First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindInvitationByToken finds an invitation by its token
func (r *GormWorkspaceRepository) FindInvitationByToken(token string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.Where("token = ?", token).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// UpdateInvitation updates an invitation's status or token
func (r *GormWorkspaceRepository) UpdateInvitation(invitation *models.Invitation) error {
	return r.db.Save(invitation).Error
}
