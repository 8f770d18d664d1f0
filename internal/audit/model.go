package audit

import "time"

// Entry is one immutable row in the audit trail. Rows are only ever
// inserted; nothing in the system updates or deletes them.
type Entry struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Type        string    `gorm:"column:type;size:50;not null;index" json:"type"`
	Title       string    `gorm:"column:title;size:255;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	UserID      string    `gorm:"column:user_id;size:255" json:"user_id"`
	LeadID      *uint     `gorm:"column:lead_id;index" json:"lead_id"`
}

// TableName binds entries to the historical logs table.
func (Entry) TableName() string {
	return "logs"
}

// Entry types recorded by the CRM services.
const (
	TypeLead     = "lead"
	TypeTask     = "task"
	TypeActivity = "activity"
	TypeNote     = "note"
	TypeSystem   = "system"
)

// Filter narrows a Query. Zero fields impose no constraint; set fields
// combine conjunctively. Start and End are inclusive calendar dates.
type Filter struct {
	Type  string
	Start *time.Time
	End   *time.Time
}
