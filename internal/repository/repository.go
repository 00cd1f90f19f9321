package repository

import (
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
)

// Store bundles the repositories behind a single transactional boundary.
// Repositories obtained from the Store passed to WithTransaction share one
// transaction; mutation and audit writes commit or roll back together.
type Store interface {
	Users() UserRepository
	Workspaces() WorkspaceRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Activity() ActivityRepository

	// WithTransaction runs fn against a Store bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(fn func(Store) error) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(email string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}

// WorkspaceRepository defines the interface for workspace and workspace
// membership data access
type WorkspaceRepository interface {
	// Create creates a new workspace
	Create(workspace *models.Workspace) error

	// FindByID finds a workspace by ID
	FindByID(id uint64) (*models.Workspace, error)

	// FindBySlug finds a workspace by its unique slug
	FindBySlug(slug string) (*models.Workspace, error)

	// Update updates a workspace
	Update(workspace *models.Workspace) error

	// AddMember adds a member to a workspace
	AddMember(member *models.WorkspaceMember) error

	// FindMember finds a specific workspace member
	FindMember(workspaceID, userID uint64) (*models.WorkspaceMember, error)

	// UpdateMemberRole changes an existing member's role
	UpdateMemberRole(workspaceID, userID uint64, role models.WorkspaceRole) error

	// RemoveMember removes a member from a workspace
	RemoveMember(workspaceID, userID uint64) error

	// ListMembers lists all members of a workspace
	ListMembers(workspaceID uint64) ([]models.WorkspaceMember, error)

	// ListMembershipsByUserID lists all workspaces a user is a member of
	ListMembershipsByUserID(userID uint64) ([]models.WorkspaceMember, error)

	// CreateInvitation records a pending invitation
	CreateInvitation(invitation *models.Invitation) error

	// FindPendingInvitation finds a pending invitation by workspace and email
	FindPendingInvitation(workspaceID uint64, email string) (*models.Invitation, error)

	// FindInvitationByToken finds an invitation by its token
	FindInvitationByToken(token string) (*models.Invitation, error)

	// UpdateInvitation updates an invitation's status or token
	UpdateInvitation(invitation *models.Invitation) error
}

// ProjectRepository defines the interface for project and project membership
// data access
type ProjectRepository interface {
	// Create creates a new project
	Create(project *models.Project) error

	// FindByID finds a project by ID
	FindByID(id uint64) (*models.Project, error)

	// FindByIDForUpdate finds a project by ID and locks the row for the
	// duration of the surrounding transaction. Used to serialize per-project
	// task number allocation.
	FindByIDForUpdate(id uint64) (*models.Project, error)

	// FindByKey finds a project by its per-workspace key
	FindByKey(workspaceID uint64, key string) (*models.Project, error)

	// ListByWorkspace lists all projects in a workspace
	ListByWorkspace(workspaceID uint64) ([]models.Project, error)

	// Update updates a project
	Update(project *models.Project) error

	// Delete soft deletes a project and its tasks
	Delete(id uint64) error

	// AddMember adds a member to a project
	AddMember(member *models.ProjectMember) error

	// FindMember finds a specific project member
	FindMember(projectID, userID uint64) (*models.ProjectMember, error)

	// UpdateMemberRole changes an existing member's role
	UpdateMemberRole(projectID, userID uint64, role models.ProjectRole) error

	// RemoveMember removes a member from a project
	RemoveMember(projectID, userID uint64) error

	// ListMembers lists all members of a project
	ListMembers(projectID uint64) ([]models.ProjectMember, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID  *uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssigneeID *uint64
	DueBefore  *time.Time
	Page       int
	PageSize   int
}

// TaskStats aggregates task counts for a project
type TaskStats struct {
	Total      int64                        `json:"total"`
	ByStatus   map[models.TaskStatus]int64  `json:"by_status"`
	ByPriority map[models.TaskPriority]int64 `json:"by_priority"`
	Overdue    int64                        `json:"overdue"`
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// FindByIDs finds tasks by IDs
	FindByIDs(ids []uint64) ([]models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete soft deletes a task
	Delete(id uint64) error

	// MaxTaskNumber returns the highest task number ever allocated in the
	// project, including numbers held by soft-deleted tasks.
	MaxTaskNumber(projectID uint64) (int, error)

	// CountSubtasks counts live tasks whose parent is the given task
	CountSubtasks(taskID uint64) (int64, error)

	// Stats aggregates task counts for a project
	Stats(projectID uint64, now time.Time) (*TaskStats, error)

	// CreateComment adds a comment to a task
	CreateComment(comment *models.TaskComment) error

	// FindComment finds a comment by ID
	FindComment(id uint64) (*models.TaskComment, error)

	// ListComments lists a task's comments, oldest first
	ListComments(taskID uint64) ([]models.TaskComment, error)

	// DeleteComment soft deletes a comment
	DeleteComment(id uint64) error
}

// ActivityFilter holds paging options for activity feeds
type ActivityFilter struct {
	Limit  int
	Offset int
}

// ActivityRepository defines the interface for the append-only audit trail.
// There are deliberately no update or delete methods.
type ActivityRepository interface {
	// Append inserts an audit entry
	Append(entry *models.ActivityLog) error

	// ListByWorkspace lists workspace activity, newest first
	ListByWorkspace(workspaceID uint64, filter ActivityFilter) ([]models.ActivityLog, error)

	// ListByProject lists project activity, newest first
	ListByProject(projectID uint64, filter ActivityFilter) ([]models.ActivityLog, error)

	// ListByTask lists task activity, newest first
	ListByTask(taskID uint64, filter ActivityFilter) ([]models.ActivityLog, error)

	// ListByUser lists an actor's activity, newest first
	ListByUser(userID uint64, filter ActivityFilter) ([]models.ActivityLog, error)
}
