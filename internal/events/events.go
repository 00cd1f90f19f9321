package events

import (
	"fmt"
	"time"

	"github.com/ktsujino/projecthub-api/internal/models"
)

// Event names published to subscribers.
const (
	TaskCreated      = "task.created"
	TaskUpdated      = "task.updated"
	TaskDeleted      = "task.deleted"
	TaskAssigned     = "task.assigned"
	TasksBulkUpdated = "tasks.bulk_updated"
	CommentAdded     = "comment.added"
	WorkspaceUpdated = "workspace.updated"
	ProjectUpdated   = "project.updated"
)

// Event is a domain event published after the transaction that produced it
// has committed. Subscribers never observe a mutation that could roll back.
type Event struct {
	Name      string      `json:"name"`
	Channel   string      `json:"channel"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProjectChannel names the channel carrying a project's events
func ProjectChannel(projectID uint64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// WorkspaceChannel names the channel carrying a workspace's events
func WorkspaceChannel(workspaceID uint64) string {
	return fmt.Sprintf("workspace:%d", workspaceID)
}

// UserChannel names a user's personal notification channel
func UserChannel(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Payloads

type TaskCreatedPayload struct {
	Task      *models.Task `json:"task"`
	CreatedBy uint64       `json:"created_by"`
}

type TaskUpdatedPayload struct {
	Task          *models.Task `json:"task"`
	ChangedFields []string     `json:"changed_fields"`
	UpdatedBy     uint64       `json:"updated_by"`
}

type TaskDeletedPayload struct {
	TaskID    uint64 `json:"task_id"`
	DeletedBy uint64 `json:"deleted_by"`
}

type TaskAssignedPayload struct {
	Task       *models.Task `json:"task"`
	AssignedBy uint64       `json:"assigned_by"`
}

type TasksBulkUpdatedPayload struct {
	Tasks []models.Task `json:"tasks"`
}

type CommentAddedPayload struct {
	Comment *models.TaskComment `json:"comment"`
	AddedBy uint64              `json:"added_by"`
}

type WorkspaceUpdatedPayload struct {
	Workspace *models.Workspace `json:"workspace"`
	UpdatedBy uint64            `json:"updated_by"`
}

type ProjectUpdatedPayload struct {
	Project   *models.Project `json:"project"`
	UpdatedBy uint64          `json:"updated_by"`
}
