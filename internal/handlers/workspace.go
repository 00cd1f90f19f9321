package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ktsujino/projecthub-api/internal/dto"
	apierrors "github.com/ktsujino/projecthub-api/internal/errors"
	"github.com/ktsujino/projecthub-api/internal/middleware"
	"github.com/ktsujino/projecthub-api/internal/models"
	"github.com/ktsujino/projecthub-api/internal/services"
)

// WorkspaceHandler coordinates workspace and membership HTTP handlers.
type WorkspaceHandler struct {
	workspaceService *services.WorkspaceService
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(workspaceService *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
	}
}

// CreateWorkspace creates a workspace owned by the current user.
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type CreateRequest struct {
		Name        string `json:"name" binding:"required,max=100"`
		Slug        string `json:"slug" binding:"required,max=100"`
		Description string `json:"description"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	workspace, err := h.workspaceService.Create(services.CreateWorkspaceInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	}, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkspaceDTO(*workspace))
}

// ListWorkspaces lists the current user's workspaces.
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	memberships, err := h.workspaceService.ListUserWorkspaces(userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	dtos := make([]dto.WorkspaceMemberDTO, 0, len(memberships))
	for _, membership := range memberships {
		dtos = append(dtos, dto.ToWorkspaceMemberDTO(membership))
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": dtos})
}

// GetWorkspace returns one workspace.
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
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

	workspace, err := h.workspaceService.Get(workspaceID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkspaceDTO(*workspace))
}

// UpdateWorkspace updates workspace attributes.
func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
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

	type UpdateRequest struct {
		Name        *string                 `json:"name"`
		Description *string                 `json:"description"`
		Status      *models.WorkspaceStatus `json:"status"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	workspace, err := h.workspaceService.Update(workspaceID, services.UpdateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	}, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkspaceDTO(*workspace))
}

// ListMembers lists workspace members.
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
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

	members, err := h.workspaceService.ListMembers(workspaceID, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	dtos := make([]dto.WorkspaceMemberDTO, 0, len(members))
	for _, member := range members {
		dtos = append(dtos, dto.ToWorkspaceMemberDTO(member))
	}

	c.JSON(http.StatusOK, gin.H{"members": dtos})
}

// AddMember adds a user to the workspace.
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
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

	type AddMemberRequest struct {
		UserID uint64               `json:"user_id" binding:"required"`
		Role   models.WorkspaceRole `json:"role" binding:"required"`
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.workspaceService.AddMember(workspaceID, req.UserID, req.Role, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToWorkspaceMemberDTO(*member))
}

// UpdateMemberRole changes a member's role.
func (h *WorkspaceHandler) UpdateMemberRole(c *gin.Context) {
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
	targetUserID, err := parseIDParam(c, "userId")
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	type UpdateRoleRequest struct {
		Role models.WorkspaceRole `json:"role" binding:"required"`
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.workspaceService.UpdateMemberRole(workspaceID, targetUserID, req.Role, userID); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

// RemoveMember removes a member from the workspace.
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
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
	targetUserID, err := parseIDParam(c, "userId")
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.workspaceService.RemoveMember(workspaceID, targetUserID, userID); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// InviteMember issues an invitation for an email address.
func (h *WorkspaceHandler) InviteMember(c *gin.Context) {
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

	type InviteRequest struct {
		Email string               `json:"email" binding:"required,email"`
		Role  models.WorkspaceRole `json:"role" binding:"required"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	invitation, err := h.workspaceService.InviteMember(workspaceID, req.Email, req.Role, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToInvitationDTO(*invitation, true))
}

// AcceptInvitation redeems an invitation token for the current user.
func (h *WorkspaceHandler) AcceptInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type AcceptRequest struct {
		Token string `json:"token" binding:"required"`
	}

	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.workspaceService.AcceptInvitation(req.Token, userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkspaceMemberDTO(*member))
}

// parseIDParam parses a numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
