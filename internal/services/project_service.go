package services

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/utils"
	"gorm.io/gorm"
)

// ProjectService owns projects and their memberships. Project keys are
// unique within a workspace and prefix task references like KEY-42.
type ProjectService struct {
	store    repository.Store
	rbac     *RBACService
	activity *ActivityService
	fanout   events.Fanout
}

// NewProjectService creates a new ProjectService
func NewProjectService(store repository.Store, rbac *RBACService, activity *ActivityService, fanout events.Fanout) *ProjectService {
	return &ProjectService{
		store:    store,
		rbac:     rbac,
		activity: activity,
		fanout:   fanout,
	}
}

// CreateProjectInput represents input for creating a project
type CreateProjectInput struct {
	WorkspaceID uint64
	Name        string
	Key         string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateProjectInput represents a partial project update
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
}

// Create creates a project and the creator's lead membership in the same
// transaction. Workspace members and above may create projects.
func (s *ProjectService) Create(input CreateProjectInput, actorID uint64) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	input.Key = strings.ToUpper(strings.TrimSpace(input.Key))
	if !utils.ValidProjectKey(input.Key) {
		return nil, fmt.Errorf("%w: key must be 2-10 uppercase letters or digits", apperrors.ErrValidation)
	}

	role, ok, err := s.rbac.GetUserWorkspaceRole(input.WorkspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.store.Workspaces().FindByID(input.WorkspaceID); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrNotFound
			}
			return nil, fmt.Errorf("failed to find workspace: %w", err)
		}
		return nil, apperrors.ErrPermissionDenied
	}
	if !GetWorkspacePermissions(role).CanCreateProjects {
		return nil, apperrors.ErrPermissionDenied
	}

	if _, err := s.store.Projects().FindByKey(input.WorkspaceID, input.Key); err == nil {
		return nil, fmt.Errorf("%w: key %q is already used in this workspace", apperrors.ErrConflict, input.Key)
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check project key: %w", err)
	}

	project := &models.Project{
		WorkspaceID: input.WorkspaceID,
		Name:        input.Name,
		Key:         input.Key,
		Description: input.Description,
		OwnerID:     actorID,
		Status:      models.ProjectStatusActive,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Projects().Create(project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		member := &models.ProjectMember{
			ProjectID: project.ID,
			UserID:    actorID,
			Role:      models.ProjectRoleLead,
			AddedAt:   time.Now(),
		}
		if err := tx.Projects().AddMember(member); err != nil {
			return fmt.Errorf("failed to add lead membership: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &project.WorkspaceID,
			ProjectID:   &project.ID,
			ActorID:     actorID,
			Action:      models.ActionProjectCreated,
			EntityType:  models.EntityTypeProject,
			Metadata: map[string]interface{}{
				"name": project.Name,
				"key":  project.Key,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// Get returns a project visible to the user.
func (s *ProjectService) Get(projectID, userID uint64) (*models.Project, error) {
	ok, err := s.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// Update changes project attributes. Requires the edit capability: project
// lead, or workspace owner/admin elevation.
func (s *ProjectService) Update(projectID uint64, input UpdateProjectInput, actorID uint64) (*models.Project, error) {
	if err := s.rbac.RequireProjectAction(projectID, actorID, ActionEditProject); err != nil {
		return nil, err
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", apperrors.ErrValidation)
	}
	if input.Status != nil {
		switch *input.Status {
		case models.ProjectStatusActive, models.ProjectStatusArchived, models.ProjectStatusCompleted:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *input.Status)
		}
	}

	var project *models.Project
	err := s.store.WithTransaction(func(tx repository.Store) error {
		current, err := tx.Projects().FindByID(projectID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to find project: %w", err)
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
		if input.StartDate != nil {
			current.StartDate = input.StartDate
			changed = true
		}
		if input.EndDate != nil {
			current.EndDate = input.EndDate
			changed = true
		}

		project = current
		if !changed {
			return nil
		}

		if err := tx.Projects().Update(current); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &current.WorkspaceID,
			ProjectID:   &current.ID,
			ActorID:     actorID,
			Action:      models.ActionProjectUpdated,
			EntityType:  models.EntityTypeProject,
			Metadata: map[string]interface{}{
				"name": current.Name,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(events.Event{
		Name:    events.ProjectUpdated,
		Channel: events.ProjectChannel(project.ID),
		Payload: events.ProjectUpdatedPayload{Project: project, UpdatedBy: actorID},
	})

	return project, nil
}

// Delete removes a project and its tasks. Reserved for workspace roles with
// the delete capability; project leads cannot delete their own project.
func (s *ProjectService) Delete(projectID, actorID uint64) error {
	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}

	role, ok, err := s.rbac.GetUserWorkspaceRole(project.WorkspaceID, actorID)
	if err != nil {
		return err
	}
	if !ok || !GetWorkspacePermissions(role).CanDeleteProjects {
		return apperrors.ErrPermissionDenied
	}

	return s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Projects().Delete(projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &project.WorkspaceID,
			ActorID:     actorID,
			Action:      models.ActionProjectDeleted,
			EntityType:  models.EntityTypeProject,
			Metadata: map[string]interface{}{
				"name": project.Name,
				"key":  project.Key,
			},
		})
	})
}

// AddMember adds a user to the project. Requires the edit capability. The
// user must already belong to the owning workspace.
func (s *ProjectService) AddMember(projectID, targetUserID uint64, role models.ProjectRole, actorID uint64) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}

	if err := s.rbac.RequireProjectAction(projectID, actorID, ActionEditProject); err != nil {
		return nil, err
	}

	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if _, ok, err := s.rbac.GetUserWorkspaceRole(project.WorkspaceID, targetUserID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: user is not a member of the workspace", apperrors.ErrValidation)
	}

	if _, err := s.store.Projects().FindMember(projectID, targetUserID); err == nil {
		return nil, fmt.Errorf("%w: user is already a member", apperrors.ErrConflict)
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    targetUserID,
		Role:      role,
		AddedAt:   time.Now(),
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Projects().AddMember(member); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &project.WorkspaceID,
			ProjectID:   &projectID,
			ActorID:     actorID,
			Action:      models.ActionMemberAdded,
			EntityType:  models.EntityTypeProject,
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

// UpdateMemberRole changes a project member's role. The project owner's
// membership is immutable, mirroring the workspace owner rule.
func (s *ProjectService) UpdateMemberRole(projectID, targetUserID uint64, role models.ProjectRole, actorID uint64) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", apperrors.ErrValidation, role)
	}

	if err := s.rbac.RequireProjectAction(projectID, actorID, ActionEditProject); err != nil {
		return err
	}

	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		return fmt.Errorf("failed to find project: %w", err)
	}
	if targetUserID == project.OwnerID {
		return fmt.Errorf("%w: the project owner's membership cannot be modified", apperrors.ErrInvariantViolation)
	}

	member, err := s.store.Projects().FindMember(projectID, targetUserID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	return s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Projects().UpdateMemberRole(projectID, targetUserID, role); err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &project.WorkspaceID,
			ProjectID:   &projectID,
			ActorID:     actorID,
			Action:      models.ActionMemberRoleChanged,
			EntityType:  models.EntityTypeProject,
			Metadata: map[string]interface{}{
				"member_id": targetUserID,
				"from":      member.Role,
				"to":        role,
			},
		})
	})
}

// RemoveMember removes a project member. The project owner can never be
// removed. Members may leave on their own.
func (s *ProjectService) RemoveMember(projectID, targetUserID, actorID uint64) error {
	if targetUserID != actorID {
		if err := s.rbac.RequireProjectAction(projectID, actorID, ActionEditProject); err != nil {
			return err
		}
	}

	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}
	if targetUserID == project.OwnerID {
		return fmt.Errorf("%w: the project owner's membership cannot be removed", apperrors.ErrInvariantViolation)
	}

	if _, err := s.store.Projects().FindMember(projectID, targetUserID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	return s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Projects().RemoveMember(projectID, targetUserID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			WorkspaceID: &project.WorkspaceID,
			ProjectID:   &projectID,
			ActorID:     actorID,
			Action:      models.ActionMemberRemoved,
			EntityType:  models.EntityTypeProject,
			Metadata: map[string]interface{}{
				"member_id": targetUserID,
			},
		})
	})
}

// ListWorkspaceProjects lists a workspace's projects, visible to any
// workspace membership level.
func (s *ProjectService) ListWorkspaceProjects(workspaceID, userID uint64) ([]models.Project, error) {
	if err := s.rbac.RequireWorkspaceRole(workspaceID, userID, models.WorkspaceRoleViewer); err != nil {
		return nil, err
	}

	projects, err := s.store.Projects().ListByWorkspace(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// ListMembers lists project members, visible to anyone who can see the
// project.
func (s *ProjectService) ListMembers(projectID, userID uint64) ([]models.ProjectMember, error) {
	ok, err := s.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}

	members, err := s.store.Projects().ListMembers(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
