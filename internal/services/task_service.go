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
	"gorm.io/gorm"
)

// taskRelations are the preloads used when returning a task to callers.
var taskRelations = []string{"Assignee", "Reporter", "Project"}

// TaskService owns the task lifecycle: creation with per-project number
// allocation, concurrency-safe updates with per-field audit, bulk status
// transitions, and deletion. Every mutation runs in one transaction with its
// audit rows; events publish only after commit.
type TaskService struct {
	store    repository.Store
	rbac     *RBACService
	activity *ActivityService
	fanout   events.Fanout
}

// NewTaskService creates a new TaskService
func NewTaskService(store repository.Store, rbac *RBACService, activity *ActivityService, fanout events.Fanout) *TaskService {
	return &TaskService{
		store:    store,
		rbac:     rbac,
		activity: activity,
		fanout:   fanout,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	ProjectID      uint64
	Title          string
	Description    string
	Status         models.TaskStatus
	Priority       models.TaskPriority
	AssigneeID     *uint64
	ParentTaskID   *uint64
	EstimatedHours *int
	DueDate        *time.Time
}

// UpdateTaskInput represents a partial update. Nil pointers leave the field
// untouched; the Clear flags explicitly null out nullable fields.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *models.TaskStatus
	Priority       *models.TaskPriority
	AssigneeID     *uint64
	ClearAssignee  bool
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *int
	ActualHours    *int
}

// IsEmpty reports whether the patch touches nothing.
func (in UpdateTaskInput) IsEmpty() bool {
	return in.Title == nil &&
		in.Description == nil &&
		in.Status == nil &&
		in.Priority == nil &&
		in.AssigneeID == nil && !in.ClearAssignee &&
		in.DueDate == nil && !in.ClearDueDate &&
		in.EstimatedHours == nil &&
		in.ActualHours == nil
}

// BulkStatusUpdate is one item of a bulk status transition.
type BulkStatusUpdate struct {
	TaskID uint64            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// CreateTask creates a task in a project. The task number is 1 + the highest
// number ever used in the project, computed under the project row lock in the
// same transaction as the insert. A lost race on the unique (project, number)
// index is treated as transient and retried a bounded number of times.
func (s *TaskService) CreateTask(input CreateTaskInput, actorID uint64) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, input.Status)
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", apperrors.ErrValidation, input.Priority)
	}

	if err := s.rbac.RequireProjectAction(input.ProjectID, actorID, ActionCreateTasks); err != nil {
		return nil, err
	}

	if input.AssigneeID != nil {
		if err := s.ensureAssignable(input.ProjectID, *input.AssigneeID); err != nil {
			return nil, err
		}
	}
	if input.ParentTaskID != nil {
		parent, err := s.store.Tasks().FindByID(*input.ParentTaskID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent task does not exist", apperrors.ErrValidation)
			}
			return nil, fmt.Errorf("failed to find parent task: %w", err)
		}
		if parent.ProjectID != input.ProjectID {
			return nil, fmt.Errorf("%w: parent task belongs to a different project", apperrors.ErrValidation)
		}
	}

	var task *models.Task
	var lastErr error
	for attempt := 0; attempt < constants.MaxStoreRetries; attempt++ {
		task = nil
		lastErr = s.store.WithTransaction(func(tx repository.Store) error {
			if _, err := tx.Projects().FindByIDForUpdate(input.ProjectID); err != nil {
				return fmt.Errorf("failed to lock project: %w", err)
			}

			maxNumber, err := tx.Tasks().MaxTaskNumber(input.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to read task counter: %w", err)
			}

			created := &models.Task{
				ProjectID:      input.ProjectID,
				Title:          input.Title,
				Description:    input.Description,
				TaskNumber:     maxNumber + 1,
				Status:         input.Status,
				Priority:       input.Priority,
				AssigneeID:     input.AssigneeID,
				ReporterID:     actorID,
				ParentTaskID:   input.ParentTaskID,
				EstimatedHours: input.EstimatedHours,
				DueDate:        input.DueDate,
			}
			if created.Status == models.TaskStatusDone {
				now := time.Now()
				created.CompletedAt = &now
			}

			if err := tx.Tasks().Create(created); err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			if err := s.activity.Record(tx, ActivityEntry{
				ProjectID:  &created.ProjectID,
				TaskID:     &created.ID,
				ActorID:    actorID,
				Action:     models.ActionTaskCreated,
				EntityType: models.EntityTypeTask,
				Metadata: map[string]interface{}{
					"task_number": created.TaskNumber,
					"title":       created.Title,
				},
			}); err != nil {
				return err
			}

			task = created
			return nil
		})

		if lastErr == nil {
			break
		}
		if !isTransient(lastErr) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, lastErr)
	}

	s.fanout.Publish(events.Event{
		Name:    events.TaskCreated,
		Channel: events.ProjectChannel(task.ProjectID),
		Payload: events.TaskCreatedPayload{Task: task, CreatedBy: actorID},
	})

	return task, nil
}

// UpdateTask applies a partial update. The read, the diff against the prior
// row, the write, and the audit rows all happen in one transaction, so
// concurrent editors each diff against the true prior state. An empty patch
// writes nothing and publishes nothing.
func (s *TaskService) UpdateTask(taskID uint64, input UpdateTaskInput, actorID uint64) (*models.Task, error) {
	existing, err := s.store.Tasks().FindByID(taskID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.rbac.RequireProjectAction(existing.ProjectID, actorID, ActionManageTasks); err != nil {
		return nil, err
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", apperrors.ErrValidation)
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *input.Status)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", apperrors.ErrValidation, *input.Priority)
	}
	if input.AssigneeID != nil {
		if err := s.ensureAssignable(existing.ProjectID, *input.AssigneeID); err != nil {
			return nil, err
		}
	}

	if input.IsEmpty() {
		return existing, nil
	}

	var task *models.Task
	var changedFields []string
	var assigneeChangedTo *uint64

	err = s.store.WithTransaction(func(tx repository.Store) error {
		current, err := tx.Tasks().FindByID(taskID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to find task: %w", err)
		}

		prior := *current
		changedFields = changedFields[:0]
		assigneeChangedTo = nil

		if input.Title != nil && *input.Title != current.Title {
			current.Title = *input.Title
			changedFields = append(changedFields, "title")
		}
		if input.Description != nil && *input.Description != current.Description {
			current.Description = *input.Description
			changedFields = append(changedFields, "description")
		}
		if input.Status != nil && *input.Status != current.Status {
			current.Status = *input.Status
			applyCompletionSideEffect(current, prior.Status)
			changedFields = append(changedFields, "status")
		}
		if input.ClearAssignee {
			if current.AssigneeID != nil {
				current.AssigneeID = nil
				changedFields = append(changedFields, "assignee")
			}
		} else if input.AssigneeID != nil {
			if current.AssigneeID == nil || *current.AssigneeID != *input.AssigneeID {
				current.AssigneeID = input.AssigneeID
				changedFields = append(changedFields, "assignee")
				assigneeChangedTo = input.AssigneeID
			}
		}
		if input.Priority != nil && *input.Priority != current.Priority {
			current.Priority = *input.Priority
			changedFields = append(changedFields, "priority")
		}
		if input.ClearDueDate {
			if current.DueDate != nil {
				current.DueDate = nil
				changedFields = append(changedFields, "due_date")
			}
		} else if input.DueDate != nil {
			if current.DueDate == nil || !current.DueDate.Equal(*input.DueDate) {
				current.DueDate = input.DueDate
				changedFields = append(changedFields, "due_date")
			}
		}
		if input.EstimatedHours != nil {
			if current.EstimatedHours == nil || *current.EstimatedHours != *input.EstimatedHours {
				current.EstimatedHours = input.EstimatedHours
				changedFields = append(changedFields, "estimated_hours")
			}
		}
		if input.ActualHours != nil {
			if current.ActualHours == nil || *current.ActualHours != *input.ActualHours {
				current.ActualHours = input.ActualHours
				changedFields = append(changedFields, "actual_hours")
			}
		}

		if len(changedFields) == 0 {
			task = current
			return nil
		}

		if err := tx.Tasks().Update(current); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if err := s.recordTaskDiff(tx, &prior, current, actorID); err != nil {
			return err
		}

		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(changedFields) == 0 {
		return task, nil
	}

	s.fanout.Publish(events.Event{
		Name:    events.TaskUpdated,
		Channel: events.ProjectChannel(task.ProjectID),
		Payload: events.TaskUpdatedPayload{Task: task, ChangedFields: changedFields, UpdatedBy: actorID},
	})
	if assigneeChangedTo != nil {
		s.fanout.Publish(events.Event{
			Name:    events.TaskAssigned,
			Channel: events.UserChannel(*assigneeChangedTo),
			Payload: events.TaskAssignedPayload{Task: task, AssignedBy: actorID},
		})
	}

	return task, nil
}

// AssignTask sets or clears a task's assignee.
func (s *TaskService) AssignTask(taskID uint64, assigneeID *uint64, actorID uint64) (*models.Task, error) {
	existing, err := s.store.Tasks().FindByID(taskID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.rbac.RequireProjectAction(existing.ProjectID, actorID, ActionAssignTasks); err != nil {
		return nil, err
	}

	input := UpdateTaskInput{}
	if assigneeID == nil {
		input.ClearAssignee = true
	} else {
		input.AssigneeID = assigneeID
	}

	return s.UpdateTask(taskID, input, actorID)
}

// BulkUpdateStatus applies status transitions to many tasks. Items the actor
// may not manage are silently skipped rather than failing the batch; every
// included item commits in one transaction so the audit trail matches the
// published batch. Callers detect skips by comparing result length to request
// length.
func (s *TaskService) BulkUpdateStatus(updates []BulkStatusUpdate, actorID uint64) ([]models.Task, error) {
	for _, update := range updates {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, update.Status)
		}
	}

	permitted := make([]BulkStatusUpdate, 0, len(updates))
	for _, update := range updates {
		task, err := s.store.Tasks().FindByID(update.TaskID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to find task: %w", err)
		}

		ok, err := s.rbac.CanPerformProjectAction(task.ProjectID, actorID, ActionManageTasks)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		permitted = append(permitted, update)
	}

	updated := make([]models.Task, 0, len(permitted))
	if len(permitted) > 0 {
		err := s.store.WithTransaction(func(tx repository.Store) error {
			updated = updated[:0]
			for _, update := range permitted {
				current, err := tx.Tasks().FindByID(update.TaskID)
				if err != nil {
					if stderrors.Is(err, gorm.ErrRecordNotFound) {
						continue
					}
					return fmt.Errorf("failed to find task: %w", err)
				}

				if current.Status == update.Status {
					updated = append(updated, *current)
					continue
				}

				prior := *current
				current.Status = update.Status
				applyCompletionSideEffect(current, prior.Status)

				if err := tx.Tasks().Update(current); err != nil {
					return fmt.Errorf("failed to update task: %w", err)
				}
				if err := s.recordTaskDiff(tx, &prior, current, actorID); err != nil {
					return err
				}

				updated = append(updated, *current)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// One batch event per affected project.
	byProject := make(map[uint64][]models.Task)
	for _, task := range updated {
		byProject[task.ProjectID] = append(byProject[task.ProjectID], task)
	}
	for projectID, tasks := range byProject {
		s.fanout.Publish(events.Event{
			Name:    events.TasksBulkUpdated,
			Channel: events.ProjectChannel(projectID),
			Payload: events.TasksBulkUpdatedPayload{Tasks: tasks},
		})
	}

	return updated, nil
}

// DeleteTask removes a task. A task that still has subtasks cannot be
// deleted; reparent or delete the subtasks first.
func (s *TaskService) DeleteTask(taskID, actorID uint64) error {
	task, err := s.store.Tasks().FindByID(taskID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.rbac.RequireProjectAction(task.ProjectID, actorID, ActionDeleteTasks); err != nil {
		return err
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		subtasks, err := tx.Tasks().CountSubtasks(taskID)
		if err != nil {
			return fmt.Errorf("failed to count subtasks: %w", err)
		}
		if subtasks > 0 {
			return fmt.Errorf("%w: task still has %d subtasks", apperrors.ErrInvariantViolation, subtasks)
		}

		if err := tx.Tasks().Delete(taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			ProjectID:  &task.ProjectID,
			TaskID:     &task.ID,
			ActorID:    actorID,
			Action:     models.ActionTaskDeleted,
			EntityType: models.EntityTypeTask,
			Metadata: map[string]interface{}{
				"task_number": task.TaskNumber,
				"title":       task.Title,
			},
		})
	})
	if err != nil {
		return err
	}

	s.fanout.Publish(events.Event{
		Name:    events.TaskDeleted,
		Channel: events.ProjectChannel(task.ProjectID),
		Payload: events.TaskDeletedPayload{TaskID: task.ID, DeletedBy: actorID},
	})

	return nil
}

// GetTaskWithRelations returns a task with its assignee, reporter, and
// project loaded through explicit reads.
func (s *TaskService) GetTaskWithRelations(taskID, userID uint64) (*models.Task, error) {
	task, err := s.store.Tasks().FindByID(taskID, taskRelations...)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	ok, err := s.rbac.CanAccessProject(task.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	return task, nil
}

// ListProjectTasks lists a project's tasks with optional filters.
func (s *TaskService) ListProjectTasks(projectID, userID uint64, filter repository.TaskFilter) ([]models.Task, int64, error) {
	ok, err := s.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperrors.ErrPermissionDenied
	}

	filter.ProjectID = &projectID
	tasks, total, err := s.store.Tasks().List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListUserTasks lists tasks assigned to the user across projects.
func (s *TaskService) ListUserTasks(userID uint64, filter repository.TaskFilter) ([]models.Task, int64, error) {
	filter.AssigneeID = &userID
	tasks, total, err := s.store.Tasks().List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetProjectTaskStats aggregates task counts for a project board header.
func (s *TaskService) GetProjectTaskStats(projectID, userID uint64) (*repository.TaskStats, error) {
	ok, err := s.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}

	stats, err := s.store.Tasks().Stats(projectID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate task stats: %w", err)
	}
	return stats, nil
}

// applyCompletionSideEffect derives CompletedAt from a status transition:
// set on entering done, cleared on leaving it.
func applyCompletionSideEffect(task *models.Task, priorStatus models.TaskStatus) {
	switch {
	case task.Status == models.TaskStatusDone && priorStatus != models.TaskStatusDone:
		now := time.Now()
		task.CompletedAt = &now
	case task.Status != models.TaskStatusDone && priorStatus == models.TaskStatusDone:
		task.CompletedAt = nil
	}
}

// recordTaskDiff appends one audit row per audited field that changed
// between prior and current, in the fixed order status, assignee, priority.
func (s *TaskService) recordTaskDiff(tx repository.Store, prior, current *models.Task, actorID uint64) error {
	if prior.Status != current.Status {
		if err := s.activity.Record(tx, ActivityEntry{
			ProjectID:  &current.ProjectID,
			TaskID:     &current.ID,
			ActorID:    actorID,
			Action:     models.ActionTaskStatusChanged,
			EntityType: models.EntityTypeTask,
			Metadata: map[string]interface{}{
				"from": prior.Status,
				"to":   current.Status,
			},
		}); err != nil {
			return err
		}
	}

	if !equalUint64Ptr(prior.AssigneeID, current.AssigneeID) {
		if err := s.activity.Record(tx, ActivityEntry{
			ProjectID:  &current.ProjectID,
			TaskID:     &current.ID,
			ActorID:    actorID,
			Action:     models.ActionTaskAssigneeChanged,
			EntityType: models.EntityTypeTask,
			Metadata: map[string]interface{}{
				"from": uint64PtrValue(prior.AssigneeID),
				"to":   uint64PtrValue(current.AssigneeID),
			},
		}); err != nil {
			return err
		}
	}

	if prior.Priority != current.Priority {
		if err := s.activity.Record(tx, ActivityEntry{
			ProjectID:  &current.ProjectID,
			TaskID:     &current.ID,
			ActorID:    actorID,
			Action:     models.ActionTaskPriorityChanged,
			EntityType: models.EntityTypeTask,
			Metadata: map[string]interface{}{
				"from": prior.Priority,
				"to":   current.Priority,
			},
		}); err != nil {
			return err
		}
	}

	return nil
}

// ensureAssignable verifies the prospective assignee can see the project.
func (s *TaskService) ensureAssignable(projectID, assigneeID uint64) error {
	ok, err := s.rbac.CanAccessProject(projectID, assigneeID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assignee has no access to the project", apperrors.ErrValidation)
	}
	return nil
}

// isTransient reports whether a store failure is worth retrying. A duplicate
// key on the (project, task_number) index means the allocation lost a race.
func isTransient(err error) bool {
	return stderrors.Is(err, gorm.ErrDuplicatedKey)
}

func equalUint64Ptr(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uint64PtrValue(p *uint64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
