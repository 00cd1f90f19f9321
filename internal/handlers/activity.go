package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ktsujino/projecthub-api/internal/dto"
	apierrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/middleware"
	"github.com/ktsujino/projecthub-api/internal/repository"
	"github.com/ktsujino/projecthub-api/internal/services"
	"github.com/ktsujino/projecthub-api/internal/utils"
)

// ActivityHandler serves the audit trail feeds.
type ActivityHandler struct {
	activityService *services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

func activityFilter(c *gin.Context) repository.ActivityFilter {
	params := utils.GetPaginationParams(c)
	return repository.ActivityFilter{
		Limit:  params.Limit,
		Offset: params.Offset,
	}
}

// WorkspaceActivity lists a workspace's activity feed.
func (h *ActivityHandler) WorkspaceActivity(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	workspaceID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid workspace ID")
		return
	}

	entries, err := h.activityService.WorkspaceFeed(workspaceID, userID, activityFilter(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": dto.ToActivityLogDTOs(entries)})
}

// ProjectActivity lists a project's activity feed.
func (h *ActivityHandler) ProjectActivity(c *gin.Context) {
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

	entries, err := h.activityService.ProjectFeed(projectID, userID, activityFilter(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": dto.ToActivityLogDTOs(entries)})
}

// TaskActivity lists a task's activity feed.
func (h *ActivityHandler) TaskActivity(c *gin.Context) {
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

	entries, err := h.activityService.TaskFeed(taskID, userID, activityFilter(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": dto.ToActivityLogDTOs(entries)})
}

// MyActivity lists the current user's own activity.
func (h *ActivityHandler) MyActivity(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	entries, err := h.activityService.UserFeed(userID, activityFilter(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": dto.ToActivityLogDTOs(entries)})
}
