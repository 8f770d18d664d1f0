package notes

import (
	"errors"
	"time"
)

const defaultColor = "blue"

var (
	// ErrInvalidNote indicates a create payload failed validation.
	ErrInvalidNote = errors.New("notes: invalid note")
	// ErrNotFound indicates the referenced note does not exist.
	ErrNotFound = errors.New("notes: note not found")
)

// Note is a sticky note pinned to a lead. Notes belong to exactly one lead
// and disappear with it when the lead is deleted.
type Note struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	LeadID    uint      `gorm:"column:lead_id;not null;index" json:"lead_id"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	Color     string    `gorm:"column:color;size:20;not null" json:"color"`
	UserID    string    `gorm:"column:user_id;size:255" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName binds notes to their table.
func (Note) TableName() string {
	return "notes"
}

// Input carries the fields accepted when creating a note.
type Input struct {
	LeadID  uint
	Content string
	Color   string
	UserID  string
}
