package services

import (
	stderrors "errors"
	"fmt"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"gorm.io/gorm"
)

// WorkspacePermissions is the set of capabilities a workspace role grants.
type WorkspacePermissions struct {
	CanManageMembers  bool `json:"can_manage_members"`
	CanCreateProjects bool `json:"can_create_projects"`
	CanDeleteProjects bool `json:"can_delete_projects"`
	CanManageSettings bool `json:"can_manage_settings"`
	CanViewWorkspace  bool `json:"can_view_workspace"`
}

// ProjectPermissions is the set of capabilities a project role grants.
type ProjectPermissions struct {
	CanManageTasks bool `json:"can_manage_tasks"`
	CanCreateTasks bool `json:"can_create_tasks"`
	CanDeleteTasks bool `json:"can_delete_tasks"`
	CanAssignTasks bool `json:"can_assign_tasks"`
	CanViewProject bool `json:"can_view_project"`
	CanEditProject bool `json:"can_edit_project"`
}

// ProjectAction names one capability from ProjectPermissions.
type ProjectAction string

const (
	ActionManageTasks ProjectAction = "manage_tasks"
	ActionCreateTasks ProjectAction = "create_tasks"
	ActionDeleteTasks ProjectAction = "delete_tasks"
	ActionAssignTasks ProjectAction = "assign_tasks"
	ActionViewProject ProjectAction = "view_project"
	ActionEditProject ProjectAction = "edit_project"
)

// Allows reports whether the permission set grants the action.
func (p ProjectPermissions) Allows(action ProjectAction) bool {
	switch action {
	case ActionManageTasks:
		return p.CanManageTasks
	case ActionCreateTasks:
		return p.CanCreateTasks
	case ActionDeleteTasks:
		return p.CanDeleteTasks
	case ActionAssignTasks:
		return p.CanAssignTasks
	case ActionViewProject:
		return p.CanViewProject
	case ActionEditProject:
		return p.CanEditProject
	default:
		return false
	}
}

// Permission tables are explicit per role rather than derived from the role
// ordering: a workspace member outranks a viewer but still cannot delete
// projects, and a project developer cannot delete tasks or edit the project.
var workspacePermissions = map[models.WorkspaceRole]WorkspacePermissions{
	models.WorkspaceRoleOwner: {
		CanManageMembers:  true,
		CanCreateProjects: true,
		CanDeleteProjects: true,
		CanManageSettings: true,
		CanViewWorkspace:  true,
	},
	models.WorkspaceRoleAdmin: {
		CanManageMembers:  true,
		CanCreateProjects: true,
		CanDeleteProjects: true,
		CanManageSettings: false,
		CanViewWorkspace:  true,
	},
	models.WorkspaceRoleMember: {
		CanManageMembers:  false,
		CanCreateProjects: true,
		CanDeleteProjects: false,
		CanManageSettings: false,
		CanViewWorkspace:  true,
	},
	models.WorkspaceRoleViewer: {
		CanManageMembers:  false,
		CanCreateProjects: false,
		CanDeleteProjects: false,
		CanManageSettings: false,
		CanViewWorkspace:  true,
	},
}

var projectPermissions = map[models.ProjectRole]ProjectPermissions{
	models.ProjectRoleLead: {
		CanManageTasks: true,
		CanCreateTasks: true,
		CanDeleteTasks: true,
		CanAssignTasks: true,
		CanViewProject: true,
		CanEditProject: true,
	},
	models.ProjectRoleDeveloper: {
		CanManageTasks: true,
		CanCreateTasks: true,
		CanDeleteTasks: false,
		CanAssignTasks: true,
		CanViewProject: true,
		CanEditProject: false,
	},
	models.ProjectRoleViewer: {
		CanManageTasks: false,
		CanCreateTasks: false,
		CanDeleteTasks: false,
		CanAssignTasks: false,
		CanViewProject: true,
		CanEditProject: false,
	},
}

// GetWorkspacePermissions returns the permission set for a workspace role.
// Unknown roles grant nothing.
func GetWorkspacePermissions(role models.WorkspaceRole) WorkspacePermissions {
	return workspacePermissions[role]
}

// GetProjectPermissions returns the permission set for a project role.
// Unknown roles grant nothing.
func GetProjectPermissions(role models.ProjectRole) ProjectPermissions {
	return projectPermissions[role]
}

// RBACService decides whether a principal may act at a workspace or project
// scope. Project decisions reconcile two hierarchies: a direct project grant
// wins; otherwise only workspace owner/admin elevation applies.
type RBACService struct {
	store repository.Store
}

// NewRBACService creates a new RBACService
func NewRBACService(store repository.Store) *RBACService {
	return &RBACService{store: store}
}

// GetUserWorkspaceRole returns the user's workspace role, or false if the
// user has no membership there.
func (s *RBACService) GetUserWorkspaceRole(workspaceID, userID uint64) (models.WorkspaceRole, bool, error) {
	member, err := s.store.Workspaces().FindMember(workspaceID, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up workspace membership: %w", err)
	}
	return member.Role, true, nil
}

// GetUserProjectRole returns the user's direct project role, or false if the
// user has no membership there.
func (s *RBACService) GetUserProjectRole(projectID, userID uint64) (models.ProjectRole, bool, error) {
	member, err := s.store.Projects().FindMember(projectID, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up project membership: %w", err)
	}
	return member.Role, true, nil
}

// HasWorkspaceRole reports whether the user holds at least minRole in the
// workspace. Absence of membership denies.
func (s *RBACService) HasWorkspaceRole(workspaceID, userID uint64, minRole models.WorkspaceRole) (bool, error) {
	role, ok, err := s.GetUserWorkspaceRole(workspaceID, userID)
	if err != nil || !ok {
		return false, err
	}
	return role.Level() >= minRole.Level(), nil
}

// HasProjectRole reports whether the user holds at least minRole directly in
// the project. Workspace elevation is not considered here.
func (s *RBACService) HasProjectRole(projectID, userID uint64, minRole models.ProjectRole) (bool, error) {
	role, ok, err := s.GetUserProjectRole(projectID, userID)
	if err != nil || !ok {
		return false, err
	}
	return role.Level() >= minRole.Level(), nil
}

// RequireWorkspaceRole returns ErrNotFound when the workspace does not exist
// and ErrPermissionDenied when the user holds less than minRole there.
func (s *RBACService) RequireWorkspaceRole(workspaceID, userID uint64, minRole models.WorkspaceRole) error {
	if _, err := s.store.Workspaces().FindByID(workspaceID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find workspace: %w", err)
	}

	ok, err := s.HasWorkspaceRole(workspaceID, userID, minRole)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

// CanAccessProject reports whether the user can see the project at all: any
// direct project membership or any membership in the owning workspace counts.
func (s *RBACService) CanAccessProject(projectID, userID uint64) (bool, error) {
	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrNotFound
		}
		return false, fmt.Errorf("failed to find project: %w", err)
	}

	if _, ok, err := s.GetUserWorkspaceRole(project.WorkspaceID, userID); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	_, ok, err := s.GetUserProjectRole(projectID, userID)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CanPerformProjectAction reconciles the two scopes for a project action.
// The direct project grant is consulted first and wins when it allows the
// action. Otherwise workspace owner/admin elevation grants every project
// action; workspace member/viewer grant no write capability at all. The two
// role hierarchies are never compared to each other.
func (s *RBACService) CanPerformProjectAction(projectID, userID uint64, action ProjectAction) (bool, error) {
	projectRole, ok, err := s.GetUserProjectRole(projectID, userID)
	if err != nil {
		return false, err
	}
	if ok && GetProjectPermissions(projectRole).Allows(action) {
		return true, nil
	}

	project, err := s.store.Projects().FindByID(projectID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrNotFound
		}
		return false, fmt.Errorf("failed to find project: %w", err)
	}

	workspaceRole, ok, err := s.GetUserWorkspaceRole(project.WorkspaceID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if workspaceRole == models.WorkspaceRoleOwner || workspaceRole == models.WorkspaceRoleAdmin {
		return true, nil
	}

	return action == ActionViewProject, nil
}

// RequireProjectAction returns ErrNotFound when the project does not exist
// and ErrPermissionDenied when the user may not perform the action.
func (s *RBACService) RequireProjectAction(projectID, userID uint64, action ProjectAction) error {
	if _, err := s.store.Projects().FindByID(projectID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}

	ok, err := s.CanPerformProjectAction(projectID, userID, action)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrPermissionDenied
	}
	return nil
}
