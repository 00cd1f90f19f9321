package dto

import (
	"fmt"
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/utils"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID             uint64              `json:"id"`
	ProjectID      uint64              `json:"project_id"`
	TaskNumber     int                 `json:"task_number"`
	Reference      string              `json:"reference,omitempty"`
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	Status         models.TaskStatus   `json:"status"`
	Priority       models.TaskPriority `json:"priority"`
	AssigneeID     *uint64             `json:"assignee_id"`
	ReporterID     uint64              `json:"reporter_id"`
	ParentTaskID   *uint64             `json:"parent_task_id,omitempty"`
	EstimatedHours *int                `json:"estimated_hours,omitempty"`
	ActualHours    *int                `json:"actual_hours,omitempty"`
	DueDate        *time.Time          `json:"due_date"`
	CompletedAt    *time.Time          `json:"completed_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Assignee       *UserDTO            `json:"assignee,omitempty"`
	Reporter       *UserDTO            `json:"reporter,omitempty"`
	Project        *ProjectDTO         `json:"project,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// TaskCommentDTO represents a task comment in API responses
type TaskCommentDTO struct {
	ID        uint64    `json:"id"`
	TaskID    uint64    `json:"task_id"`
	UserID    uint64    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      *UserDTO  `json:"user,omitempty"`
}

// TaskStatsDTO represents aggregated task counts for a project
type TaskStatsDTO struct {
	Total      int64                         `json:"total"`
	ByStatus   map[models.TaskStatus]int64   `json:"by_status"`
	ByPriority map[models.TaskPriority]int64 `json:"by_priority"`
	Overdue    int64                         `json:"overdue"`
}

// ActivityLogDTO represents an audit entry in API responses
type ActivityLogDTO struct {
	ID          uint64            `json:"id"`
	WorkspaceID *uint64           `json:"workspace_id,omitempty"`
	ProjectID   *uint64           `json:"project_id,omitempty"`
	TaskID      *uint64           `json:"task_id,omitempty"`
	UserID      uint64            `json:"user_id"`
	Action      string            `json:"action"`
	EntityType  models.EntityType `json:"entity_type"`
	Metadata    string            `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	User        *UserDTO          `json:"user,omitempty"`
}

// Conversion functions

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:             task.ID,
		ProjectID:      task.ProjectID,
		TaskNumber:     task.TaskNumber,
		Title:          task.Title,
		Description:    task.Description,
		Status:         task.Status,
		Priority:       task.Priority,
		AssigneeID:     task.AssigneeID,
		ReporterID:     task.ReporterID,
		ParentTaskID:   task.ParentTaskID,
		EstimatedHours: task.EstimatedHours,
		ActualHours:    task.ActualHours,
		DueDate:        task.DueDate,
		CompletedAt:    task.CompletedAt,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}

	// Include relations if preloaded
	if task.Assignee != nil && task.Assignee.ID != 0 {
		assignee := ToUserDTO(*task.Assignee)
		dto.Assignee = &assignee
	}
	if task.Reporter.ID != 0 {
		reporter := ToUserDTO(task.Reporter)
		dto.Reporter = &reporter
	}
	if task.Project.ID != 0 {
		project := ToProjectDTO(task.Project)
		dto.Project = &project
		dto.Reference = fmt.Sprintf("%s-%d", task.Project.Key, task.TaskNumber)
	}

	return dto
}

// ToTaskDTOs converts a slice of Task models
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		dtos = append(dtos, ToTaskDTO(task))
	}
	return dtos
}

// ToTaskCommentDTO converts a TaskComment model to TaskCommentDTO
func ToTaskCommentDTO(comment models.TaskComment) TaskCommentDTO {
	dto := TaskCommentDTO{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}

	if comment.User.ID != 0 {
		user := ToUserDTO(comment.User)
		dto.User = &user
	}

	return dto
}

// ToTaskStatsDTO converts repository TaskStats to TaskStatsDTO
func ToTaskStatsDTO(stats repository.TaskStats) TaskStatsDTO {
	return TaskStatsDTO{
		Total:      stats.Total,
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
		Overdue:    stats.Overdue,
	}
}

// ToActivityLogDTO converts an ActivityLog model to ActivityLogDTO
func ToActivityLogDTO(entry models.ActivityLog) ActivityLogDTO {
	dto := ActivityLogDTO{
		ID:          entry.ID,
		WorkspaceID: entry.WorkspaceID,
		ProjectID:   entry.ProjectID,
		TaskID:      entry.TaskID,
		UserID:      entry.UserID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		Metadata:    entry.Metadata,
		CreatedAt:   entry.CreatedAt,
	}

	if entry.User.ID != 0 {
		user := ToUserDTO(entry.User)
		dto.User = &user
	}

	return dto
}

// ToActivityLogDTOs converts a slice of ActivityLog models
func ToActivityLogDTOs(entries []models.ActivityLog) []ActivityLogDTO {
	dtos := make([]ActivityLogDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, ToActivityLogDTO(entry))
	}
	return dtos
}
