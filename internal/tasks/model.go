package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is the two-state task lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

var (
	// ErrInvalidTask indicates a create payload failed validation.
	ErrInvalidTask = errors.New("tasks: invalid task")
	// ErrNotFound indicates the referenced task does not exist.
	ErrNotFound = errors.New("tasks: task not found")
)

// ParsePriority validates a raw priority value.
func ParsePriority(rawValue string) (Priority, error) {
	switch Priority(strings.TrimSpace(strings.ToLower(rawValue))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, rawValue)
	}
}

// ParseStatus validates a raw status value.
func ParseStatus(rawValue string) (Status, error) {
	switch Status(strings.TrimSpace(strings.ToLower(rawValue))) {
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTask, rawValue)
	}
}

// Task is a follow-up item, optionally attached to a lead.
type Task struct {
	ID          uint       `gorm:"column:id;primaryKey" json:"id"`
	Title       string     `gorm:"column:title;size:255;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date"`
	Priority    Priority   `gorm:"column:priority;size:20;not null" json:"priority"`
	Status      Status     `gorm:"column:status;size:20;not null" json:"status"`
	LeadID      *uint      `gorm:"column:lead_id;index" json:"lead_id"`
	Assignee    string     `gorm:"column:assignee;size:255" json:"assignee"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName binds tasks to their table.
func (Task) TableName() string {
	return "tasks"
}

// TaskWithLead is the list projection: a task joined with the name of the
// lead it belongs to, when any.
type TaskWithLead struct {
	Task
	LeadName string `json:"lead_name"`
}

// Input carries the fields accepted when creating a task.
type Input struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
	Status      string
	LeadID      *uint
	Assignee    string
}
