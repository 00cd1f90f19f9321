package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ktsujino/projecthub-api/internal/constants"
	"github.com/ktsujino/projecthub-api/internal/dto"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	db         *gorm.DB
	handler    *TaskHandler
	auth       *services.AuthService
	workspaces *services.WorkspaceService
	projects   *services.ProjectService
	tasks      *services.TaskService
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
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
	suite.Require().NoError(err)

	store := repository.NewStore(suite.db)
	fanout := events.NewNullFanout()
	rbac := services.NewRBACService(store)
	activity := services.NewActivityService(store, rbac)
	suite.auth = services.NewAuthService(store)
	suite.workspaces = services.NewWorkspaceService(store, rbac, activity, fanout)
	suite.projects = services.NewProjectService(store, rbac, activity, fanout)
	suite.tasks = services.NewTaskService(store, rbac, activity, fanout)
	comments := services.NewCommentService(store, rbac, activity, fanout)
	suite.handler = NewTaskHandler(suite.tasks, comments)

	gin.SetMode(gin.TestMode)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskHandlerTestSuite) createUser(name string) *models.User {
	user, err := suite.auth.Signup(name+"@example.com", name, "supersecret")
	suite.Require().NoError(err)
	return user
}

func (suite *TaskHandlerTestSuite) createProject(owner *models.User) *models.Project {
	workspace, err := suite.workspaces.Create(services.CreateWorkspaceInput{
		Name: "Acme",
		Slug: "acme",
	}, owner.ID)
	suite.Require().NoError(err)

	project, err := suite.projects.Create(services.CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Core",
		Key:         "CORE",
	}, owner.ID)
	suite.Require().NoError(err)
	return project
}

// createAuthContext builds an authenticated test context with path params.
func (suite *TaskHandlerTestSuite) createAuthContext(method, url string, body []byte, userID uint64, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	c.Set(constants.ContextKeyUserID, userID)

	return c, w
}

func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	owner := suite.createUser("owner")
	project := suite.createProject(owner)

	body, _ := json.Marshal(map[string]interface{}{
		"title":    "First task",
		"priority": "high",
	})
	c, w := suite.createAuthContext("POST", "/api/projects/1/tasks", body, owner.ID,
		gin.Param{Key: "id", Value: strconv.FormatUint(project.ID, 10)})

	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), 1, response.TaskNumber)
	assert.Equal(suite.T(), models.TaskPriorityHigh, response.Priority)
	assert.Equal(suite.T(), models.TaskStatusTodo, response.Status)
}

func (suite *TaskHandlerTestSuite) TestCreateTask_DeniedForWorkspaceViewer() {
	owner := suite.createUser("owner")
	viewer := suite.createUser("viewer")
	project := suite.createProject(owner)

	_, err := suite.workspaces.AddMember(project.WorkspaceID, viewer.ID, models.WorkspaceRoleViewer, owner.ID)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]interface{}{"title": "Nope"})
	c, w := suite.createAuthContext("POST", "/api/projects/1/tasks", body, viewer.ID,
		gin.Param{Key: "id", Value: "1"})

	suite.handler.CreateTask(c)

	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestUpdateTask_StatusToDone() {
	owner := suite.createUser("owner")
	project := suite.createProject(owner)

	task, err := suite.tasks.CreateTask(services.CreateTaskInput{
		ProjectID: project.ID,
		Title:     "Finish me",
	}, owner.ID)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]interface{}{"status": "done"})
	c, w := suite.createAuthContext("PATCH", "/api/tasks/1", body, owner.ID,
		gin.Param{Key: "id", Value: strconv.FormatUint(task.ID, 10)})

	suite.handler.UpdateTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), models.TaskStatusDone, response.Status)
	assert.NotNil(suite.T(), response.CompletedAt)
}

func (suite *TaskHandlerTestSuite) TestGetTask_NotFoundForOutsider() {
	owner := suite.createUser("owner")
	outsider := suite.createUser("outsider")
	project := suite.createProject(owner)

	_, err := suite.tasks.CreateTask(services.CreateTaskInput{
		ProjectID: project.ID,
		Title:     "Hidden",
	}, owner.ID)
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("GET", "/api/tasks/1", nil, outsider.ID,
		gin.Param{Key: "id", Value: "1"})

	suite.handler.GetTask(c)

	// Existence is not revealed to non-members.
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestBulkUpdateStatus_ReportsSkipped() {
	owner := suite.createUser("owner")
	dev := suite.createUser("dev")
	project := suite.createProject(owner)

	_, err := suite.workspaces.AddMember(project.WorkspaceID, dev.ID, models.WorkspaceRoleMember, owner.ID)
	suite.Require().NoError(err)
	_, err = suite.projects.AddMember(project.ID, dev.ID, models.ProjectRoleDeveloper, owner.ID)
	suite.Require().NoError(err)

	// A second project where dev has no grant.
	restricted, err := suite.projects.Create(services.CreateProjectInput{
		WorkspaceID: project.WorkspaceID,
		Name:        "Restricted",
		Key:         "SEC",
	}, owner.ID)
	suite.Require().NoError(err)

	allowed, err := suite.tasks.CreateTask(services.CreateTaskInput{ProjectID: project.ID, Title: "mine"}, owner.ID)
	suite.Require().NoError(err)
	denied, err := suite.tasks.CreateTask(services.CreateTaskInput{ProjectID: restricted.ID, Title: "not mine"}, owner.ID)
	suite.Require().NoError(err)

	body, _ := json.Marshal(map[string]interface{}{
		"updates": []map[string]interface{}{
			{"task_id": allowed.ID, "status": "done"},
			{"task_id": denied.ID, "status": "done"},
		},
	})
	c, w := suite.createAuthContext("POST", "/api/tasks/bulk-status", body, dev.ID)

	suite.handler.BulkUpdateStatus(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response struct {
		Updated int `json:"updated"`
		Skipped int `json:"skipped"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(suite.T(), 1, response.Updated)
	assert.Equal(suite.T(), 1, response.Skipped)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask_SubtaskConflict() {
	owner := suite.createUser("owner")
	project := suite.createProject(owner)

	parent, err := suite.tasks.CreateTask(services.CreateTaskInput{ProjectID: project.ID, Title: "parent"}, owner.ID)
	suite.Require().NoError(err)
	_, err = suite.tasks.CreateTask(services.CreateTaskInput{
		ProjectID:    project.ID,
		Title:        "child",
		ParentTaskID: &parent.ID,
	}, owner.ID)
	suite.Require().NoError(err)

	c, w := suite.createAuthContext("DELETE", "/api/tasks/1", nil, owner.ID,
		gin.Param{Key: "id", Value: "1"})

	suite.handler.DeleteTask(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
