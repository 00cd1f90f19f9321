package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ktsujino/projecthub-api/internal/dto"
	apierrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/middleware"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/services"
	"github.com/ktsujino/projecthub-api/internal/utils"
)

// TaskHandler coordinates task and comment HTTP handlers.
type TaskHandler struct {
	taskService    *services.TaskService
	commentService *services.CommentService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService, commentService *services.CommentService) *TaskHandler {
	return &TaskHandler{
		taskService:    taskService,
		commentService: commentService,
	}
}

// CreateTask creates a task in a project.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projectID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid project ID")
		return
	}

	type CreateRequest struct {
		Title          string              `json:"title" binding:"required,max=255"`
		Description    string              `json:"description"`
		Status         models.TaskStatus   `json:"status"`
		Priority       models.TaskPriority `json:"priority"`
		AssigneeID     *uint64             `json:"assignee_id"`
		ParentTaskID   *uint64             `json:"parent_task_id"`
		EstimatedHours *int                `json:"estimated_hours"`
		DueDate        *time.Time          `json:"due_date"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		ProjectID:      projectID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		ParentTaskID:   req.ParentTaskID,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
	}, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// ListProjectTasks lists a project's tasks with optional filters.
func (h *TaskHandler) ListProjectTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projectID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid project ID")
		return
	}

	params := utils.GetPaginationParams(c)
	filter := repository.TaskFilter{
		Page:     params.Page,
		PageSize: params.Limit,
	}

	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		if !s.Valid() {
			apierrors.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.TaskPriority(priority)
		if !p.Valid() {
			apierrors.BadRequest(c, "Invalid priority filter")
			return
		}
		filter.Priority = &p
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		id, err := strconv.ParseUint(assignee, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid assignee_id")
			return
		}
		filter.AssigneeID = &id
	}

	tasks, total, err := h.taskService.ListProjectTasks(projectID, userID, filter)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{
		Tasks: dto.ToTaskDTOs(tasks),
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// ListMyTasks lists tasks assigned to the current user across projects.
func (h *TaskHandler) ListMyTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	filter := repository.TaskFilter{
		Page:     params.Page,
		PageSize: params.Limit,
	}

	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		if !s.Valid() {
			apierrors.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &s
	}

	tasks, total, err := h.taskService.ListUserTasks(userID, filter)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{
		Tasks: dto.ToTaskDTOs(tasks),
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// GetTask returns one task with its relations.
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	task, err := h.taskService.GetTaskWithRelations(taskID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update to a task.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	type UpdateRequest struct {
		Title          *string              `json:"title"`
		Description    *string              `json:"description"`
		Status         *models.TaskStatus   `json:"status"`
		Priority       *models.TaskPriority `json:"priority"`
		AssigneeID     *uint64              `json:"assignee_id"`
		ClearAssignee  bool                 `json:"clear_assignee"`
		DueDate        *time.Time           `json:"due_date"`
		ClearDueDate   bool                 `json:"clear_due_date"`
		EstimatedHours *int                 `json:"estimated_hours"`
		ActualHours    *int                 `json:"actual_hours"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(taskID, services.UpdateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		ClearAssignee:  req.ClearAssignee,
		DueDate:        req.DueDate,
		ClearDueDate:   req.ClearDueDate,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
	}, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// AssignTask sets or clears a task's assignee.
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	type AssignRequest struct {
		AssigneeID *uint64 `json:"assignee_id"`
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.AssignTask(taskID, req.AssigneeID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// BulkUpdateStatus applies status transitions to many tasks at once. Items
// the user may not manage are skipped; the response carries only the tasks
// that were actually updated.
func (h *TaskHandler) BulkUpdateStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type BulkRequest struct {
		Updates []services.BulkStatusUpdate `json:"updates" binding:"required,min=1"`
	}

	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	tasks, err := h.taskService.BulkUpdateStatus(req.Updates, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":   dto.ToTaskDTOs(tasks),
		"updated": len(tasks),
		"skipped": len(req.Updates) - len(tasks),
	})
}

// DeleteTask deletes a task.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	if err := h.taskService.DeleteTask(taskID, userID); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// GetProjectTaskStats returns aggregated task counts for a project.
func (h *TaskHandler) GetProjectTaskStats(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	projectID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid project ID")
		return
	}

	stats, err := h.taskService.GetProjectTaskStats(projectID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskStatsDTO(*stats))
}

// AddComment adds a comment to a task.
func (h *TaskHandler) AddComment(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	type CommentRequest struct {
		Content string `json:"content" binding:"required"`
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.commentService.AddComment(taskID, req.Content, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskCommentDTO(*comment))
}

// ListComments lists a task's comments, oldest first.
func (h *TaskHandler) ListComments(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	taskID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	comments, err := h.commentService.ListComments(taskID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	dtos := make([]dto.TaskCommentDTO, 0, len(comments))
	for _, comment := range comments {
		dtos = append(dtos, dto.ToTaskCommentDTO(comment))
	}

	c.JSON(http.StatusOK, gin.H{"comments": dtos})
}

// DeleteComment deletes a comment.
func (h *TaskHandler) DeleteComment(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	commentID, err := parseIDParam(c, "commentId")
	if err != nil {
		apierrors.BadRequest(c, "Invalid comment ID")
		return
	}

	if err := h.commentService.DeleteComment(commentID, userID); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
