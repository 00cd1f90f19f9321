package services

import (
	"encoding/json"
	"testing"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/stretchr/testify/suite"
)

type ActivityServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *ActivityServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
}

func (suite *ActivityServiceTestSuite) TestFeedsAreNewestFirst() {
	owner := suite.env.user("owner")
	workspace := suite.env.workspace(owner, "acme")
	project := suite.env.project(workspace, owner, "CORE")
	task := suite.env.task(project, owner, "work")

	done := models.TaskStatusDone
	_, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &done}, owner.ID)
	suite.Require().NoError(err)

	entries, err := suite.env.activity.TaskFeed(task.ID, owner.ID, listAll())
	suite.Require().NoError(err)
	suite.Require().Len(entries, 2)
	suite.Assert().Equal(models.ActionTaskStatusChanged, entries[0].Action)
	suite.Assert().Equal(models.ActionTaskCreated, entries[1].Action)
}

func (suite *ActivityServiceTestSuite) TestStatusChangeMetadataCarriesFromAndTo() {
	owner := suite.env.user("owner")
	workspace := suite.env.workspace(owner, "acme")
	project := suite.env.project(workspace, owner, "CORE")
	task := suite.env.task(project, owner, "work")

	blocked := models.TaskStatusBlocked
	_, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &blocked}, owner.ID)
	suite.Require().NoError(err)

	entries, err := suite.env.activity.TaskFeed(task.ID, owner.ID, listAll())
	suite.Require().NoError(err)

	var metadata map[string]string
	suite.Require().NoError(json.Unmarshal([]byte(entries[0].Metadata), &metadata))
	suite.Assert().Equal("todo", metadata["from"])
	suite.Assert().Equal("blocked", metadata["to"])
}

func (suite *ActivityServiceTestSuite) TestFeedsRequireAccess() {
	owner := suite.env.user("owner")
	outsider := suite.env.user("outsider")
	workspace := suite.env.workspace(owner, "acme")
	project := suite.env.project(workspace, owner, "CORE")
	task := suite.env.task(project, owner, "secret")

	_, err := suite.env.activity.WorkspaceFeed(workspace.ID, outsider.ID, listAll())
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)

	_, err = suite.env.activity.ProjectFeed(project.ID, outsider.ID, listAll())
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)

	_, err = suite.env.activity.TaskFeed(task.ID, outsider.ID, listAll())
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
}

func (suite *ActivityServiceTestSuite) TestPaginationLimitsResults() {
	owner := suite.env.user("owner")
	workspace := suite.env.workspace(owner, "acme")
	project := suite.env.project(workspace, owner, "CORE")

	for i := 0; i < 5; i++ {
		suite.env.task(project, owner, "task")
	}

	entries, err := suite.env.activity.ProjectFeed(project.ID, owner.ID, repository.ActivityFilter{Limit: 3})
	suite.Require().NoError(err)
	suite.Assert().Len(entries, 3)
}

// TestCollaborationLifecycle walks one team through the whole flow: build the
// workspace, stand up a project, work a task, and read the trail back.
func (suite *ActivityServiceTestSuite) TestCollaborationLifecycle() {
	founder := suite.env.user("founder")
	engineer := suite.env.user("engineer")
	contractor := suite.env.user("contractor")

	workspace := suite.env.workspace(founder, "startup")
	suite.env.member(workspace, engineer, models.WorkspaceRoleMember)
	suite.env.member(workspace, contractor, models.WorkspaceRoleViewer)

	// The engineer can create the project; the contractor gets a direct
	// developer grant despite being a workspace viewer.
	project, err := suite.env.projects.Create(CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Launch",
		Key:         "LNCH",
	}, engineer.ID)
	suite.Require().NoError(err)
	suite.env.projectMember(project, contractor, models.ProjectRoleDeveloper)

	// The contractor works a task end to end.
	task, err := suite.env.tasks.CreateTask(CreateTaskInput{
		ProjectID: project.ID,
		Title:     "Ship the landing page",
		Priority:  models.TaskPriorityHigh,
	}, contractor.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(1, task.TaskNumber)

	inProgress := models.TaskStatusInProgress
	_, err = suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{
		Status:     &inProgress,
		AssigneeID: &contractor.ID,
	}, contractor.ID)
	suite.Require().NoError(err)

	done := models.TaskStatusDone
	updated, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &done}, contractor.ID)
	suite.Require().NoError(err)
	suite.Assert().NotNil(updated.CompletedAt)

	// But deleting is beyond a developer grant; the founder's elevation works.
	err = suite.env.tasks.DeleteTask(task.ID, contractor.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
	suite.Require().NoError(suite.env.tasks.DeleteTask(task.ID, founder.ID))

	// The full history survives the deletion.
	suite.Assert().Equal([]string{
		models.ActionTaskCreated,
		models.ActionTaskStatusChanged,
		models.ActionTaskAssigneeChanged,
		models.ActionTaskStatusChanged,
		models.ActionTaskDeleted,
	}, suite.env.taskActions(task.ID))
}

func TestActivityServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ActivityServiceTestSuite))
}
