package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

var taskStatuses = map[TaskStatus]struct{}{
	TaskStatusTodo:       {},
	TaskStatusInProgress: {},
	TaskStatusInReview:   {},
	TaskStatusDone:       {},
	TaskStatusBlocked:    {},
}

// Valid reports whether the status is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	_, ok := taskStatuses[s]
	return ok
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

var taskPriorities = map[TaskPriority]struct{}{
	TaskPriorityLow:    {},
	TaskPriorityMedium: {},
	TaskPriorityHigh:   {},
	TaskPriorityUrgent: {},
}

// Valid reports whether the priority is one of the known task priorities.
func (p TaskPriority) Valid() bool {
	_, ok := taskPriorities[p]
	return ok
}

type Task struct {
	ID          uint64       `gorm:"primarykey" json:"id"`
	ProjectID   uint64       `gorm:"not null;uniqueIndex:idx_tasks_project_number;index" json:"project_id"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	// TaskNumber is allocated per project, monotonically, and never reused
	// even after the task is deleted.
	TaskNumber     int            `gorm:"not null;uniqueIndex:idx_tasks_project_number" json:"task_number"`
	Status         TaskStatus     `gorm:"type:varchar(20);not null;default:'todo';index" json:"status"`
	Priority       TaskPriority   `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	AssigneeID     *uint64        `gorm:"index" json:"assignee_id"`
	ReporterID     uint64         `gorm:"not null" json:"reporter_id"`
	ParentTaskID   *uint64        `gorm:"index" json:"parent_task_id"`
	EstimatedHours *int           `json:"estimated_hours"`
	ActualHours    *int           `json:"actual_hours"`
	DueDate        *time.Time     `json:"due_date"`
	// CompletedAt is derived from status transitions: set on entering done,
	// cleared on leaving it. Never written directly by callers.
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project    Project       `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignee   *User         `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Reporter   User          `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	ParentTask *Task         `gorm:"foreignKey:ParentTaskID" json:"parent_task,omitempty"`
	Subtasks   []Task        `gorm:"foreignKey:ParentTaskID" json:"subtasks,omitempty"`
	Comments   []TaskComment `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
}
