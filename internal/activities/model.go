package activities

import (
	"errors"
	"time"
)

var (
	// ErrInvalidActivity indicates a create payload failed validation.
	ErrInvalidActivity = errors.New("activities: invalid activity")
)

// Activity is a scheduled interaction (call, meeting, demo) shown on the
// dashboard calendar, optionally attached to a lead.
type Activity struct {
	ID          uint       `gorm:"column:id;primaryKey" json:"id"`
	LeadID      *uint      `gorm:"column:lead_id;index" json:"lead_id"`
	Type        string     `gorm:"column:type;size:50;not null" json:"type"`
	Title       string     `gorm:"column:title;size:255;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	ScheduledAt *time.Time `gorm:"column:scheduled_date" json:"scheduled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName binds activities to their table.
func (Activity) TableName() string {
	return "activities"
}

// Input carries the fields accepted when scheduling an activity.
type Input struct {
	LeadID      *uint
	Type        string
	Title       string
	Description string
	ScheduledAt *time.Time
}
