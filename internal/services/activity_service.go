package services

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"gorm.io/gorm"
)

// ActivityEntry describes one audit record to append.
type ActivityEntry struct {
	WorkspaceID *uint64
	ProjectID   *uint64
	TaskID      *uint64
	ActorID     uint64
	Action      string
	EntityType  models.EntityType
	Metadata    map[string]interface{}
}

// ActivityService appends immutable audit entries and serves the activity
// feeds. Appends always go through the caller's transaction so the audit row
// commits or rolls back together with the mutation it describes.
type ActivityService struct {
	store repository.Store
	rbac  *RBACService
}

// NewActivityService creates a new ActivityService
func NewActivityService(store repository.Store, rbac *RBACService) *ActivityService {
	return &ActivityService{store: store, rbac: rbac}
}

// Record appends an audit entry via the given store, which is expected to be
// the transaction-bound Store of the mutation being described.
func (s *ActivityService) Record(tx repository.Store, entry ActivityEntry) error {
	metadata := ""
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		metadata = string(raw)
	}

	log := &models.ActivityLog{
		WorkspaceID: entry.WorkspaceID,
		ProjectID:   entry.ProjectID,
		TaskID:      entry.TaskID,
		UserID:      entry.ActorID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		Metadata:    metadata,
	}

	if err := tx.Activity().Append(log); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

// WorkspaceFeed returns a workspace's activity, newest first. Any workspace
// membership level may read the feed.
func (s *ActivityService) WorkspaceFeed(workspaceID, userID uint64, filter repository.ActivityFilter) ([]models.ActivityLog, error) {
	if err := s.rbac.RequireWorkspaceRole(workspaceID, userID, models.WorkspaceRoleViewer); err != nil {
		return nil, err
	}

	entries, err := s.store.Activity().ListByWorkspace(workspaceID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace activity: %w", err)
	}
	return entries, nil
}

// ProjectFeed returns a project's activity, newest first.
func (s *ActivityService) ProjectFeed(projectID, userID uint64, filter repository.ActivityFilter) ([]models.ActivityLog, error) {
	ok, err := s.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}

	entries, err := s.store.Activity().ListByProject(projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list project activity: %w", err)
	}
	return entries, nil
}

// TaskFeed returns a task's activity, newest first.
func (s *ActivityService) TaskFeed(taskID, userID uint64, filter repository.ActivityFilter) ([]models.ActivityLog, error) {
	task, err := s.store.Tasks().FindByID(taskID)
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
		return nil, apperrors.ErrPermissionDenied
	}

	entries, err := s.store.Activity().ListByTask(taskID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list task activity: %w", err)
	}
	return entries, nil
}

// UserFeed returns the actor's own activity, newest first.
func (s *ActivityService) UserFeed(userID uint64, filter repository.ActivityFilter) ([]models.ActivityLog, error) {
	entries, err := s.store.Activity().ListByUser(userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list user activity: %w", err)
	}
	return entries, nil
}
