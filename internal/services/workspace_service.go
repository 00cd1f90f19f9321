package services

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/ktsujino/projecthub-api/internal/constants"
	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/utils"
	"gorm.io/gorm"
)

// WorkspaceService owns workspaces, their memberships, and the invitation
// flow. The workspace owner's membership row is immutable: it can never be
// removed or have its role changed, not even by the owner.
type WorkspaceService struct {
	store    repository.Store
	rbac     *RBACService
	activity *ActivityService
	fanout   events.Fanout
}

// NewWorkspaceService creates a new WorkspaceService
func NewWorkspaceService(store repository.Store, rbac *RBACService, activity *ActivityService, fanout events.Fanout) *WorkspaceService {
	return &WorkspaceService{
		store:    store,
		rbac:     rbac,
		activity: activity,
		fanout:   fanout,
	}
}

// CreateWorkspaceInput represents input for creating a workspace
type CreateWorkspaceInput struct {
	Name        string
	Slug        string
	Description string
}

// UpdateWorkspaceInput represents a partial workspace update
type UpdateWorkspaceInput struct {
	Name        *string
	Description *string
	Status      *models.WorkspaceStatus
}

// Create creates a workspace and the creator's owner membership in the same
// transaction, so no committed workspace ever exists without its owner row.
func (s *WorkspaceService) Create(input CreateWorkspaceInput, actorID uint64) (*models.Workspace, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if !utils.ValidSlug(input.Slug) {
		return nil, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", apperrors.ErrValidation)
	}

	if _, err := s.store.Workspaces().FindBySlug(input.Slug); err == nil {
		return nil, fmt.Errorf("%w: slug %q is already taken", apperrors.ErrConflict, input.Slug)
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}

	workspace := &models.Workspace{
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		OwnerID:     actorID,
		Status:      models.WorkspaceStatusActive,
	}

	err := s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Workspaces().Create(workspace); err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}

		member := &models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      actorID,
			Role:        models.WorkspaceRoleOwner,
			JoinedAt:    time.Now(),
		}
		if err := tx.Workspaces().AddMember(member); err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &workspace.ID,
			ActorID:     actorID,
			Action:      models.ActionWorkspaceCreated,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"name": workspace.Name,
				"slug": workspace.Slug,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return workspace, nil
}

// Get returns a workspace visible to the user.
func (s *WorkspaceService) Get(workspaceID, userID uint64) (*models.Workspace, error) {
	if err := s.rbac.RequireWorkspaceRole(workspaceID, userID, models.WorkspaceRoleViewer); err != nil {
		return nil, err
	}

	workspace, err := s.store.Workspaces().FindByID(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	return workspace, nil
}

// Update changes workspace attributes. Name and description need admin;
// status (archiving) is a settings change reserved for the owner.
func (s *WorkspaceService) Update(workspaceID uint64, input UpdateWorkspaceInput, actorID uint64) (*models.Workspace, error) {
	if err := s.rbac.RequireWorkspaceRole(workspaceID, actorID, models.WorkspaceRoleAdmin); err != nil {
		return nil, err
	}

	if input.Status != nil {
		role, _, err := s.rbac.GetUserWorkspaceRole(workspaceID, actorID)
		if err != nil {
			return nil, err
		}
		if !GetWorkspacePermissions(role).CanManageSettings {
			return nil, apperrors.ErrPermissionDenied
		}
		if *input.Status != models.WorkspaceStatusActive && *input.Status != models.WorkspaceStatusArchived {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *input.Status)
		}
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", apperrors.ErrValidation)
	}

	var workspace *models.Workspace
	err := s.store.WithTransaction(func(tx repository.Store) error {
		current, err := tx.Workspaces().FindByID(workspaceID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to find workspace: %w", err)
		}

		changed := false
		if input.Name != nil && *input.Name != current.Name {
			current.Name = *input.Name
			changed = true
		}
		if input.Description != nil && *input.Description != current.Description {
			current.Description = *input.Description
			changed = true
		}
		if input.Status != nil && *input.Status != current.Status {
			current.Status = *input.Status
			changed = true
		}

		workspace = current
		if !changed {
			return nil
		}

		if err := tx.Workspaces().Update(current); err != nil {
			return fmt.Errorf("failed to update workspace: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &current.ID,
			ActorID:     actorID,
			Action:      models.ActionWorkspaceUpdated,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"name": current.Name,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(events.Event{
		Name:    events.WorkspaceUpdated,
		Channel: events.WorkspaceChannel(workspace.ID),
		Payload: events.WorkspaceUpdatedPayload{Workspace: workspace, UpdatedBy: actorID},
	})

	return workspace, nil
}

// AddMember adds a user directly to the workspace with the given role. The
// owner role cannot be granted; ownership is fixed at creation.
func (s *WorkspaceService) AddMember(workspaceID, targetUserID uint64, role models.WorkspaceRole, actorID uint64) (*models.WorkspaceMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}
	if role == models.WorkspaceRoleOwner {
		return nil, fmt.Errorf("%w: ownership cannot be granted through membership", apperrors.ErrInvariantViolation)
	}

	if err := s.requireMemberManagement(workspaceID, actorID); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().FindByID(targetUserID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user does not exist", apperrors.ErrValidation)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.store.Workspaces().FindMember(workspaceID, targetUserID); err == nil {
		return nil, fmt.Errorf("%w: user is already a member", apperrors.ErrConflict)
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      targetUserID,
		Role:        role,
		InvitedBy:   &actorID,
		JoinedAt:    time.Now(),
	}

	err := s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Workspaces().AddMember(member); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &workspaceID,
			ActorID:     actorID,
			Action:      models.ActionMemberAdded,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"member_id": targetUserID,
				"role":      role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return member, nil
}

// UpdateMemberRole changes a member's role. The owner's row is immutable:
// any attempt to change it is rejected, including by the owner themselves.
// Concurrent role changes resolve last-writer-wins; the audit trail keeps
// both entries.
func (s *WorkspaceService) UpdateMemberRole(workspaceID, targetUserID uint64, role models.WorkspaceRole, actorID uint64) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}
	if role == models.WorkspaceRoleOwner {
		return fmt.Errorf("%w: ownership cannot be granted through membership", apperrors.ErrInvariantViolation)
	}

	if err := s.requireMemberManagement(workspaceID, actorID); err != nil {
		return err
	}

	workspace, err := s.store.Workspaces().FindByID(workspaceID)
	if err != nil {
		return fmt.Errorf("failed to find workspace: %w", err)
	}
	if targetUserID == workspace.OwnerID {
		return fmt.Errorf("%w: the owner's membership cannot be modified", apperrors.ErrInvariantViolation)
	}

	member, err := s.store.Workspaces().FindMember(workspaceID, targetUserID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	return s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Workspaces().UpdateMemberRole(workspaceID, targetUserID, role); err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &workspaceID,
			ActorID:     actorID,
			Action:      models.ActionMemberRoleChanged,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"member_id": targetUserID,
				"from":      member.Role,
				"to":        role,
			},
		})
	})
}

// RemoveMember removes a member from the workspace. The owner can never be
// removed. Members may remove themselves regardless of role.
func (s *WorkspaceService) RemoveMember(workspaceID, targetUserID, actorID uint64) error {
	if targetUserID != actorID {
		if err := s.requireMemberManagement(workspaceID, actorID); err != nil {
			return err
		}
	}

	workspace, err := s.store.Workspaces().FindByID(workspaceID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find workspace: %w", err)
	}
	if targetUserID == workspace.OwnerID {
		return fmt.Errorf("%w: the owner's membership cannot be removed", apperrors.ErrInvariantViolation)
	}

	if _, err := s.store.Workspaces().FindMember(workspaceID, targetUserID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	return s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Workspaces().RemoveMember(workspaceID, targetUserID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &workspaceID,
			ActorID:     actorID,
			Action:      models.ActionMemberRemoved,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"member_id": targetUserID,
			},
		})
	})
}

// InviteMember issues an invitation token for an email address. Re-inviting
// the same email revokes the previous pending invitation and issues a fresh
// token; old tokens stop working.
func (s *WorkspaceService) InviteMember(workspaceID uint64, email string, role models.WorkspaceRole, actorID uint64) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	if !role.Valid() || role == models.WorkspaceRoleOwner {
		return nil, fmt.Errorf("%w: invalid invitation role %q", apperrors.ErrValidation, role)
	}

	if err := s.requireMemberManagement(workspaceID, actorID); err != nil {
		return nil, err
	}

	if user, err := s.store.Users().FindByEmail(email); err == nil {
		if _, err := s.store.Workspaces().FindMember(workspaceID, user.ID); err == nil {
			return nil, fmt.Errorf("%w: user is already a member", apperrors.ErrConflict)
		} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := utils.GenerateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}

	invitation := &models.Invitation{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		InvitedBy:   actorID,
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().Add(constants.InvitationTTL),
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		if previous, err := tx.Workspaces().FindPendingInvitation(workspaceID, email); err == nil {
			previous.Status = models.InvitationStatusRevoked
			if err := tx.Workspaces().UpdateInvitation(previous); err != nil {
				return fmt.Errorf("failed to revoke previous invitation: %w", err)
			}
		} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check pending invitations: %w", err)
		}

		if err := tx.Workspaces().CreateInvitation(invitation); err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &workspaceID,
			ActorID:     actorID,
			Action:      models.ActionMemberInvited,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"email": email,
				"role":  role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return invitation, nil
}

// AcceptInvitation redeems a pending invitation token for the given user and
// creates the membership. The user's email must match the invitation.
func (s *WorkspaceService) AcceptInvitation(token string, userID uint64) (*models.WorkspaceMember, error) {
	invitation, err := s.store.Workspaces().FindInvitationByToken(token)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	if invitation.Status != models.InvitationStatusPending {
		return nil, fmt.Errorf("%w: invitation is no longer valid", apperrors.ErrValidation)
	}
	if time.Now().After(invitation.ExpiresAt) {
		return nil, fmt.Errorf("%w: invitation has expired", apperrors.ErrValidation)
	}

	user, err := s.store.Users().FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !strings.EqualFold(user.Email, invitation.Email) {
		return nil, fmt.Errorf("%w: invitation was issued to a different email", apperrors.ErrPermissionDenied)
	}

	if _, err := s.store.Workspaces().FindMember(invitation.WorkspaceID, userID); err == nil {
		return nil, fmt.Errorf("%w: user is already a member", apperrors.ErrConflict)
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: invitation.WorkspaceID,
		UserID:      userID,
		Role:        invitation.Role,
		InvitedBy:   &invitation.InvitedBy,
		JoinedAt:    time.Now(),
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Workspaces().AddMember(member); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		invitation.Status = models.InvitationStatusAccepted
		if err := tx.Workspaces().UpdateInvitation(invitation); err != nil {
			return fmt.Errorf("failed to update invitation: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &invitation.WorkspaceID,
			ActorID:     userID,
			Action:      models.ActionMemberAdded,
			EntityType:  models.EntityTypeWorkspace,
			Metadata: map[string]interface{}{
				"member_id": userID,
				"role":      invitation.Role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return member, nil
}

// ListUserWorkspaces lists the workspaces the user belongs to.
func (s *WorkspaceService) ListUserWorkspaces(userID uint64) ([]models.WorkspaceMember, error) {
	memberships, err := s.store.Workspaces().ListMembershipsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return memberships, nil
}

// ListMembers lists workspace members, visible to any membership level.
func (s *WorkspaceService) ListMembers(workspaceID, userID uint64) ([]models.WorkspaceMember, error) {
	if err := s.rbac.RequireWorkspaceRole(workspaceID, userID, models.WorkspaceRoleViewer); err != nil {
		return nil, err
	}

	members, err := s.store.Workspaces().ListMembers(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// requireMemberManagement checks the actor holds a role whose permission set
// includes member management.
func (s *WorkspaceService) requireMemberManagement(workspaceID, actorID uint64) error {
	if _, err := s.store.Workspaces().FindByID(workspaceID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find workspace: %w", err)
	}

	role, ok, err := s.rbac.GetUserWorkspaceRole(workspaceID, actorID)
	if err != nil {
		return err
	}
	if !ok || !GetWorkspacePermissions(role).CanManageMembers {
		return apperrors.ErrPermissionDenied
	}
	return nil
}
