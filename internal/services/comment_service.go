package services

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"gorm.io/gorm"
)

// CommentService owns task comments.
type CommentService struct {
	store    repository.Store
	rbac     *RBACService
	activity *ActivityService
	fanout   events.Fanout
}

// NewCommentService creates a new CommentService
func NewCommentService(store repository.Store, rbac *RBACService, activity *ActivityService, fanout events.Fanout) *CommentService {
	return &CommentService{
		store:    store,
		rbac:     rbac,
		activity: activity,
		fanout:   fanout,
	}
}

// AddComment adds a comment to a task. Anyone who can see the project may
// comment.
func (s *CommentService) AddComment(taskID uint64, content string, actorID uint64) (*models.TaskComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", apperrors.ErrValidation)
	}

	task, err := s.store.Tasks().FindByID(taskID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	ok, err := s.rbac.CanAccessProject(task.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}

	comment := &models.TaskComment{
		TaskID:  taskID,
		UserID:  actorID,
		Content: content,
	}

	err = s.store.WithTransaction(func(tx repository.Store) error {
		if err := tx.Tasks().CreateComment(comment); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		return s.activity.Record(tx, ActivityEntry{
			ProjectID:  &task.ProjectID,
			TaskID:     &taskID,
			ActorID:    actorID,
			Action:     models.ActionCommentAdded,
			EntityType: models.EntityTypeComment,
			Metadata: map[string]interface{}{
				"comment_id": comment.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(events.Event{
		Name:    events.CommentAdded,
		Channel: events.ProjectChannel(task.ProjectID),
		Payload: events.CommentAddedPayload{Comment: comment, AddedBy: actorID},
	})

	return comment, nil
}

// ListComments lists a task's comments, oldest first.
func (s *CommentService) ListComments(taskID, userID uint64) ([]models.TaskComment, error) {
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

	comments, err := s.store.Tasks().ListComments(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only the author or someone with the
// manage-tasks capability may delete it.
func (s *CommentService) DeleteComment(commentID, actorID uint64) error {
	comment, err := s.store.Tasks().FindComment(commentID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to find comment: %w", err)
	}

	if comment.UserID != actorID {
		task, err := s.store.Tasks().FindByID(comment.TaskID)
		if err != nil {
			return fmt.Errorf("failed to find task: %w", err)
		}
		if err := s.rbac.RequireProjectAction(task.ProjectID, actorID, ActionManageTasks); err != nil {
			return err
		}
	}

	if err := s.store.Tasks().DeleteComment(commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}
