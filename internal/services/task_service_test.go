package services

import (
	"testing"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type TaskServiceTestSuite struct {
	suite.Suite
	env       *testEnv
	owner     *models.User
	workspace *models.Workspace
	project   *models.Project
}

func (suite *TaskServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.owner = suite.env.user("owner")
	suite.workspace = suite.env.workspace(suite.owner, "acme")
	suite.project = suite.env.project(suite.workspace, suite.owner, "CORE")
}

func (suite *TaskServiceTestSuite) TestTaskNumbersAreSequentialPerProject() {
	for i := 1; i <= 5; i++ {
		task := suite.env.task(suite.project, suite.owner, "task")
		suite.Assert().Equal(i, task.TaskNumber)
	}

	// A second project starts its own sequence.
	other := suite.env.project(suite.workspace, suite.owner, "OPS")
	task := suite.env.task(other, suite.owner, "first")
	suite.Assert().Equal(1, task.TaskNumber)
}

func (suite *TaskServiceTestSuite) TestTaskNumbersNeverReused() {
	first := suite.env.task(suite.project, suite.owner, "one")
	second := suite.env.task(suite.project, suite.owner, "two")
	suite.Require().Equal(2, second.TaskNumber)

	suite.Require().NoError(suite.env.tasks.DeleteTask(second.ID, suite.owner.ID))

	// The deleted task still holds number 2; the next task gets 3.
	third := suite.env.task(suite.project, suite.owner, "three")
	suite.Assert().Equal(3, third.TaskNumber)
	suite.Assert().Equal(1, first.TaskNumber)
}

func (suite *TaskServiceTestSuite) TestCreateWithDoneStatusSetsCompletedAt() {
	task, err := suite.env.tasks.CreateTask(CreateTaskInput{
		ProjectID: suite.project.ID,
		Title:     "already finished",
		Status:    models.TaskStatusDone,
	}, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().NotNil(task.CompletedAt)
}

func (suite *TaskServiceTestSuite) TestCompletedAtDerivedFromStatusTransitions() {
	task := suite.env.task(suite.project, suite.owner, "work")
	suite.Require().Nil(task.CompletedAt)

	done := models.TaskStatusDone
	task, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &done}, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().NotNil(task.CompletedAt)

	reopened := models.TaskStatusInProgress
	task, err = suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &reopened}, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().Nil(task.CompletedAt)
}

func (suite *TaskServiceTestSuite) TestEmptyPatchIsNoOp() {
	task := suite.env.task(suite.project, suite.owner, "untouched")

	ch, cancel := suite.env.fanout.Subscribe(events.ProjectChannel(suite.project.ID))
	defer cancel()

	updated, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{}, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(task.Status, updated.Status)
	suite.Assert().Equal(task.Title, updated.Title)

	// No audit rows beyond creation, no events.
	suite.Assert().Equal([]string{models.ActionTaskCreated}, suite.env.taskActions(task.ID))
	select {
	case event := <-ch:
		suite.FailNowf("unexpected event", "got %s", event.Name)
	default:
	}
}

func (suite *TaskServiceTestSuite) TestSameValuePatchEmitsNothing() {
	task := suite.env.task(suite.project, suite.owner, "steady")

	todo := models.TaskStatusTodo
	medium := models.TaskPriorityMedium
	_, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{Status: &todo, Priority: &medium}, suite.owner.ID)
	suite.Require().NoError(err)

	suite.Assert().Equal([]string{models.ActionTaskCreated}, suite.env.taskActions(task.ID))
}

func (suite *TaskServiceTestSuite) TestUpdateRecordsOneAuditRowPerChangedField() {
	assignee := suite.env.user("assignee")
	suite.env.member(suite.workspace, assignee, models.WorkspaceRoleMember)

	task := suite.env.task(suite.project, suite.owner, "big change")

	status := models.TaskStatusInProgress
	priority := models.TaskPriorityUrgent
	_, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{
		Status:     &status,
		AssigneeID: &assignee.ID,
		Priority:   &priority,
	}, suite.owner.ID)
	suite.Require().NoError(err)

	// Rows land in a fixed order: status, then assignee, then priority.
	suite.Assert().Equal([]string{
		models.ActionTaskCreated,
		models.ActionTaskStatusChanged,
		models.ActionTaskAssigneeChanged,
		models.ActionTaskPriorityChanged,
	}, suite.env.taskActions(task.ID))
}

func (suite *TaskServiceTestSuite) TestUpdatePublishesAfterCommit() {
	assignee := suite.env.user("assignee")
	suite.env.member(suite.workspace, assignee, models.WorkspaceRoleMember)

	task := suite.env.task(suite.project, suite.owner, "watched")

	projectCh, cancelProject := suite.env.fanout.Subscribe(events.ProjectChannel(suite.project.ID))
	defer cancelProject()
	userCh, cancelUser := suite.env.fanout.Subscribe(events.UserChannel(assignee.ID))
	defer cancelUser()

	status := models.TaskStatusInReview
	_, err := suite.env.tasks.UpdateTask(task.ID, UpdateTaskInput{
		Status:     &status,
		AssigneeID: &assignee.ID,
	}, suite.owner.ID)
	suite.Require().NoError(err)

	event := <-projectCh
	suite.Assert().Equal(events.TaskUpdated, event.Name)
	payload, ok := event.Payload.(events.TaskUpdatedPayload)
	suite.Require().True(ok)
	suite.Assert().ElementsMatch([]string{"status", "assignee"}, payload.ChangedFields)
	suite.Assert().Equal(suite.owner.ID, payload.UpdatedBy)

	assigned := <-userCh
	suite.Assert().Equal(events.TaskAssigned, assigned.Name)
}

func (suite *TaskServiceTestSuite) TestBulkUpdateSkipsDeniedItems() {
	dev := suite.env.user("dev")
	suite.env.member(suite.workspace, dev, models.WorkspaceRoleMember)
	suite.env.projectMember(suite.project, dev, models.ProjectRoleDeveloper)

	// A second project where dev has no grant at all.
	restricted := suite.env.project(suite.workspace, suite.owner, "SEC")

	first := suite.env.task(suite.project, suite.owner, "one")
	denied := suite.env.task(restricted, suite.owner, "two")
	third := suite.env.task(suite.project, suite.owner, "three")

	done := models.TaskStatusDone
	updated, err := suite.env.tasks.BulkUpdateStatus([]BulkStatusUpdate{
		{TaskID: first.ID, Status: done},
		{TaskID: denied.ID, Status: done},
		{TaskID: third.ID, Status: done},
	}, dev.ID)
	suite.Require().NoError(err)

	suite.Require().Len(updated, 2)
	suite.Assert().Equal(first.ID, updated[0].ID)
	suite.Assert().Equal(third.ID, updated[1].ID)

	// The denied task is untouched.
	unchanged, err := suite.env.store.Tasks().FindByID(denied.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(models.TaskStatusTodo, unchanged.Status)
	suite.Assert().Equal([]string{models.ActionTaskCreated}, suite.env.taskActions(denied.ID))
}

func (suite *TaskServiceTestSuite) TestBulkUpdateRecordsAuditPerTask() {
	first := suite.env.task(suite.project, suite.owner, "one")
	second := suite.env.task(suite.project, suite.owner, "two")

	blocked := models.TaskStatusBlocked
	_, err := suite.env.tasks.BulkUpdateStatus([]BulkStatusUpdate{
		{TaskID: first.ID, Status: blocked},
		{TaskID: second.ID, Status: blocked},
	}, suite.owner.ID)
	suite.Require().NoError(err)

	for _, id := range []uint64{first.ID, second.ID} {
		suite.Assert().Equal([]string{
			models.ActionTaskCreated,
			models.ActionTaskStatusChanged,
		}, suite.env.taskActions(id))
	}
}

func (suite *TaskServiceTestSuite) TestDeleteTaskWithSubtasksRejected() {
	parent := suite.env.task(suite.project, suite.owner, "parent")
	_, err := suite.env.tasks.CreateTask(CreateTaskInput{
		ProjectID:    suite.project.ID,
		Title:        "child",
		ParentTaskID: &parent.ID,
	}, suite.owner.ID)
	suite.Require().NoError(err)

	err = suite.env.tasks.DeleteTask(parent.ID, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrInvariantViolation)
}

func (suite *TaskServiceTestSuite) TestDeveloperCannotDeleteTask() {
	dev := suite.env.user("dev")
	suite.env.member(suite.workspace, dev, models.WorkspaceRoleViewer)
	suite.env.projectMember(suite.project, dev, models.ProjectRoleDeveloper)

	task := suite.env.task(suite.project, suite.owner, "protected")

	err := suite.env.tasks.DeleteTask(task.ID, dev.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
}

func (suite *TaskServiceTestSuite) TestWorkspaceViewerCannotCreateTask() {
	viewer := suite.env.user("viewer")
	suite.env.member(suite.workspace, viewer, models.WorkspaceRoleViewer)

	_, err := suite.env.tasks.CreateTask(CreateTaskInput{
		ProjectID: suite.project.ID,
		Title:     "nope",
	}, viewer.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrPermissionDenied)
}

func (suite *TaskServiceTestSuite) TestAssignTaskRequiresProjectAccess() {
	outsider := suite.env.user("outsider")
	task := suite.env.task(suite.project, suite.owner, "unassignable")

	_, err := suite.env.tasks.AssignTask(task.ID, &outsider.ID, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrValidation)
}

func (suite *TaskServiceTestSuite) TestStatsAggregation() {
	done := models.TaskStatusDone

	first := suite.env.task(suite.project, suite.owner, "one")
	suite.env.task(suite.project, suite.owner, "two")
	_, err := suite.env.tasks.UpdateTask(first.ID, UpdateTaskInput{Status: &done}, suite.owner.ID)
	suite.Require().NoError(err)

	stats, err := suite.env.tasks.GetProjectTaskStats(suite.project.ID, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(int64(2), stats.Total)
	suite.Assert().Equal(int64(1), stats.ByStatus[models.TaskStatusDone])
	suite.Assert().Equal(int64(1), stats.ByStatus[models.TaskStatusTodo])
}

// flakyStore injects transient transaction failures before delegating to the
// real store.
type flakyStore struct {
	repository.Store
	failures int
	calls    int
}

func (s *flakyStore) WithTransaction(fn func(repository.Store) error) error {
	s.calls++
	if s.calls <= s.failures {
		return gorm.ErrDuplicatedKey
	}
	return s.Store.WithTransaction(fn)
}

func (suite *TaskServiceTestSuite) TestCreateRetriesTransientFailures() {
	flaky := &flakyStore{Store: suite.env.store, failures: 2}
	tasks := NewTaskService(flaky, suite.env.rbac, suite.env.activity, suite.env.fanout)

	task, err := tasks.CreateTask(CreateTaskInput{
		ProjectID: suite.project.ID,
		Title:     "eventually",
	}, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal(1, task.TaskNumber)
	suite.Assert().Equal(3, flaky.calls)
}

func (suite *TaskServiceTestSuite) TestCreateGivesUpAfterBoundedRetries() {
	flaky := &flakyStore{Store: suite.env.store, failures: 100}
	tasks := NewTaskService(flaky, suite.env.rbac, suite.env.activity, suite.env.fanout)

	_, err := tasks.CreateTask(CreateTaskInput{
		ProjectID: suite.project.ID,
		Title:     "never",
	}, suite.owner.ID)
	suite.Assert().ErrorIs(err, apperrors.ErrStorageUnavailable)
	suite.Assert().Equal(3, flaky.calls)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
