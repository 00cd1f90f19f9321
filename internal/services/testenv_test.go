package services

import (
	"fmt"
	"testing"

	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles a fresh in-memory database with the full service graph.
type testEnv struct {
	t          *testing.T
	db         *gorm.DB
	store      repository.Store
	fanout     *events.ChannelFanout
	rbac       *RBACService
	activity   *ActivityService
	auth       *AuthService
	workspaces *WorkspaceService
	projects   *ProjectService
	tasks      *TaskService
	comments   *CommentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.TaskComment{},
		&models.ActivityLog{},
		&models.Invitation{},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	store := repository.NewStore(db)
	fanout := events.NewChannelFanout()
	rbac := NewRBACService(store)
	activity := NewActivityService(store, rbac)

	return &testEnv{
		t:          t,
		db:         db,
		store:      store,
		fanout:     fanout,
		rbac:       rbac,
		activity:   activity,
		auth:       NewAuthService(store),
		workspaces: NewWorkspaceService(store, rbac, activity, fanout),
		projects:   NewProjectService(store, rbac, activity, fanout),
		tasks:      NewTaskService(store, rbac, activity, fanout),
		comments:   NewCommentService(store, rbac, activity, fanout),
	}
}

// user signs up a user with a derived email.
func (e *testEnv) user(name string) *models.User {
	e.t.Helper()
	user, err := e.auth.Signup(fmt.Sprintf("%s@example.com", name), name, "password123")
	require.NoError(e.t, err)
	return user
}

// workspace creates a workspace owned by owner.
func (e *testEnv) workspace(owner *models.User, slug string) *models.Workspace {
	e.t.Helper()
	workspace, err := e.workspaces.Create(CreateWorkspaceInput{
		Name: slug,
		Slug: slug,
	}, owner.ID)
	require.NoError(e.t, err)
	return workspace
}

// member adds a user to a workspace with the given role, acting as the owner.
func (e *testEnv) member(workspace *models.Workspace, user *models.User, role models.WorkspaceRole) {
	e.t.Helper()
	_, err := e.workspaces.AddMember(workspace.ID, user.ID, role, workspace.OwnerID)
	require.NoError(e.t, err)
}

// project creates a project in the workspace, owned by owner.
func (e *testEnv) project(workspace *models.Workspace, owner *models.User, key string) *models.Project {
	e.t.Helper()
	project, err := e.projects.Create(CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        key,
		Key:         key,
	}, owner.ID)
	require.NoError(e.t, err)
	return project
}

// projectMember adds a user to a project with the given role, acting as the
// project owner.
func (e *testEnv) projectMember(project *models.Project, user *models.User, role models.ProjectRole) {
	e.t.Helper()
	_, err := e.projects.AddMember(project.ID, user.ID, role, project.OwnerID)
	require.NoError(e.t, err)
}

// task creates a task in the project, reported by actor.
func (e *testEnv) task(project *models.Project, actor *models.User, title string) *models.Task {
	e.t.Helper()
	task, err := e.tasks.CreateTask(CreateTaskInput{
		ProjectID: project.ID,
		Title:     title,
	}, actor.ID)
	require.NoError(e.t, err)
	return task
}

// listAll is an activity filter wide enough for any test fixture.
func listAll() repository.ActivityFilter {
	return repository.ActivityFilter{Limit: 100}
}

// taskActions returns the audit actions recorded for a task, oldest first.
func (e *testEnv) taskActions(taskID uint64) []string {
	e.t.Helper()
	var entries []models.ActivityLog
	err := e.db.Where("task_id = ?", taskID).Order("id ASC").Find(&entries).Error
	require.NoError(e.t, err)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}
