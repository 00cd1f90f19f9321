package repository

import (
	"github.com/ktsujino/projecthub-api/internal/models"
	"gorm.io/gorm"
)

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

// Append inserts an audit entry
func (r *GormActivityRepository) Append(entry *models.ActivityLog) error {
	return r.db.Create(entry).Error
}

func (r *GormActivityRepository) list(cond string, id uint64, filter ActivityFilter) ([]models.ActivityLog, error) {
	query := r.db.Preload("User").
		Where(cond, id).
		Order("created_at DESC, id DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []models.ActivityLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByWorkspace lists workspace activity, newest first
func (r *GormActivityRepository) ListByWorkspace(workspaceID uint64, filter ActivityFilter) ([]models.ActivityLog, error) {
	return r.list("workspace_id = ?", workspaceID, filter)
}

// ListByProject lists project activity, newest first
func (r *GormActivityRepository) ListByProject(projectID uint64, filter ActivityFilter) ([]models.ActivityLog, error) {
	return r.list("project_id = ?", projectID, filter)
}

// ListByTask lists task activity, newest first
func (r *GormActivityRepository) ListByTask(taskID uint64, filter ActivityFilter) ([]models.ActivityLog, error) {
	return r.list("task_id = ?", taskID, filter)
}

// ListByUser lists an actor's activity, newest first
func (r *GormActivityRepository) ListByUser(userID uint64, filter ActivityFilter) ([]models.ActivityLog, error) {
	return r.list("user_id = ?", userID, filter)
}
