package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	apierrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/events"
	"github.com/ktsujino/projecthub-api/internal/middleware"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/services"
)

// EventsHandler streams domain events to clients over server-sent events.
type EventsHandler struct {
	fanout events.Fanout
	rbac   *services.RBACService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(fanout events.Fanout, rbac *services.RBACService) *EventsHandler {
	return &EventsHandler{
		fanout: fanout,
		rbac:   rbac,
	}
}

// ProjectEvents streams a project's events to a subscriber who can see the
// project. The stream starts at subscription time; earlier events are gone.
func (h *EventsHandler) ProjectEvents(c *gin.Context) {
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

	ok, err := h.rbac.CanAccessProject(projectID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !ok {
		apierrors.Respond(c, apierrors.ErrPermissionDenied)
		return
	}

	h.stream(c, events.ProjectChannel(projectID))
}

// WorkspaceEvents streams a workspace's events.
func (h *EventsHandler) WorkspaceEvents(c *gin.Context) {
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

	if err := h.rbac.RequireWorkspaceRole(workspaceID, userID, models.WorkspaceRoleViewer); err != nil {
		apierrors.Respond(c, err)
		return
	}

	h.stream(c, events.WorkspaceChannel(workspaceID))
}

// MyEvents streams the current user's personal notifications.
func (h *EventsHandler) MyEvents(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	h.stream(c, events.UserChannel(userID))
}

func (h *EventsHandler) stream(c *gin.Context, channel string) {
	ch, cancel := h.fanout.Subscribe(channel)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(event.Name, event)
			return true
		}
	})
}
