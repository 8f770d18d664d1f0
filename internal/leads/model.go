package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is a lead's pipeline stage. The pipeline has a conventional
// ordering (new through won/lost) but transitions are not guarded: any
// status may be assigned from any other. Kanban drag-and-drop depends on
// that permissiveness.
type Status string

const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusQualified   Status = "qualified"
	StatusProposal    Status = "proposal"
	StatusNegotiation Status = "negotiation"
	StatusWon         Status = "won"
	StatusLost        Status = "lost"
)

// PipelineStages lists statuses in conventional pipeline order, one Kanban
// column each.
var PipelineStages = []Status{
	StatusNew,
	StatusContacted,
	StatusQualified,
	StatusProposal,
	StatusNegotiation,
	StatusWon,
	StatusLost,
}

// Temperature grades how engaged a lead currently is.
type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

const (
	defaultScore = 50
	maxScore     = 100
)

var (
	// ErrInvalidLead indicates a create or update payload failed validation.
	ErrInvalidLead = errors.New("leads: invalid lead")
	// ErrDuplicateEmail indicates the email is already taken by another lead.
	ErrDuplicateEmail = errors.New("leads: email already in use")
	// ErrNotFound indicates the referenced lead does not exist.
	ErrNotFound = errors.New("leads: lead not found")
)

// ParseStatus validates a raw status value.
func ParseStatus(rawValue string) (Status, error) {
	candidate := Status(strings.TrimSpace(strings.ToLower(rawValue)))
	for _, stage := range PipelineStages {
		if candidate == stage {
			return stage, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidLead, rawValue)
}

// ParseTemperature validates a raw temperature value.
func ParseTemperature(rawValue string) (Temperature, error) {
	switch Temperature(strings.TrimSpace(strings.ToLower(rawValue))) {
	case TemperatureCold:
		return TemperatureCold, nil
	case TemperatureWarm:
		return TemperatureWarm, nil
	case TemperatureHot:
		return TemperatureHot, nil
	default:
		return "", fmt.Errorf("%w: unknown temperature %q", ErrInvalidLead, rawValue)
	}
}

// Lead is a sales prospect moving through the pipeline.
type Lead struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	Name        string          `gorm:"column:name;size:255;not null" json:"name"`
	Company     string          `gorm:"column:company;size:255" json:"company"`
	Email       string          `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	Phone       string          `gorm:"column:phone;size:50" json:"phone"`
	Position    string          `gorm:"column:position;size:255" json:"position"`
	Source      string          `gorm:"column:source;size:100" json:"source"`
	Status      Status          `gorm:"column:status;size:50;not null" json:"status"`
	Responsible string          `gorm:"column:responsible;size:255" json:"responsible"`
	Score       int             `gorm:"column:score;not null" json:"score"`
	Temperature Temperature     `gorm:"column:temperature;size:20;not null" json:"temperature"`
	Value       decimal.Decimal `gorm:"column:value;type:decimal(10,2);not null" json:"value"`
	Notes       string          `gorm:"column:notes;type:text" json:"notes"`
	LastContact *time.Time      `gorm:"column:last_contact" json:"last_contact"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName binds leads to their table.
func (Lead) TableName() string {
	return "leads"
}

// Input carries the mutable fields of a lead. Create applies defaults for
// absent fields; Update treats the input as the complete new record.
type Input struct {
	Name        string
	Company     string
	Email       string
	Phone       string
	Position    string
	Source      string
	Status      string
	Responsible string
	Score       *int
	Temperature string
	Value       *decimal.Decimal
	Notes       string
	LastContact *time.Time
}
