package repository

import (
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByIDs finds tasks by IDs
func (r *GormTaskRepository) FindByIDs(ids []uint64) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	if err := r.db.Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	query := r.db.Model(&models.Task{})

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("task_number ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		listQuery = listQuery.Offset(offset).Limit(filter.PageSize)
	}

	var tasks []models.Task
	if err := listQuery.Preload("Assignee").Preload("Reporter").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

// Delete soft deletes a task and its comments
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Task{}, id).Error
	})
}

// MaxTaskNumber returns the highest task number ever allocated in the
// project. Soft-deleted rows are included so numbers are never reused.
func (r *GormTaskRepository) MaxTaskNumber(projectID uint64) (int, error) {
	var max int
	err := r.db.Unscoped().
		Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(task_number), 0)").
		Scan(&max).Error
	return max, err
}

// CountSubtasks counts live tasks whose parent is the given task
func (r *GormTaskRepository) CountSubtasks(taskID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Task{}).
		Where("parent_task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

// Stats aggregates task counts for a project
func (r *GormTaskRepository) Stats(projectID uint64, now time.Time) (*TaskStats, error) {
	stats := &TaskStats{
		ByStatus:   make(map[models.TaskStatus]int64),
		ByPriority: make(map[models.TaskPriority]int64),
	}

	type statusRow struct {
		Status models.TaskStatus
		Count  int64
	}
	var statusRows []statusRow
	if err := r.db.Model(&models.Task{}).
		Select("status, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	type priorityRow struct {
		Priority models.TaskPriority
		Count    int64
	}
	var priorityRows []priorityRow
	if err := r.db.Model(&models.Task{}).
		Select("priority, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("priority").
		Scan(&priorityRows).Error; err != nil {
		return nil, err
	}
	for _, row := range priorityRows {
		stats.ByPriority[row.Priority] = row.Count
	}

	if err := r.db.Model(&models.Task{}).
		Where("project_id = ? AND due_date < ? AND status <> ?", projectID, now, models.TaskStatusDone).
		Count(&stats.Overdue).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// CreateComment adds a comment to a task
func (r *GormTaskRepository) CreateComment(comment *models.TaskComment) error {
	return r.db.Create(comment).Error
}

// FindComment finds a comment by ID
func (r *GormTaskRepository) FindComment(id uint64) (*models.TaskComment, error) {
	var comment models.TaskComment
	if err := r.db.First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments lists a task's comments, oldest first
func (r *GormTaskRepository) ListComments(taskID uint64) ([]models.TaskComment, error) {
	var comments []models.TaskComment
	if err := r.db.Preload("User").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// DeleteComment soft deletes a comment
func (r *GormTaskRepository) DeleteComment(id uint64) error {
	return r.db.Delete(&models.TaskComment{}, id).Error
}
