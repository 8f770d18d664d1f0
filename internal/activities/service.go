package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("activities: database handle is required")
	errMissingAudit    = errors.New("activities: audit service is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the activity service.
type ServiceConfig struct {
	Database *gorm.DB
	Audit    *audit.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service schedules and lists calendar activities.
type Service struct {
	db     *gorm.DB
	audit  *audit.Service
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the activity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Audit == nil {
		return nil, errMissingAudit
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = noOpLogger
	}
	return &Service{db: cfg.Database, audit: cfg.Audit, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// List returns all activities in schedule order.
func (s *Service) List(ctx context.Context) ([]Activity, error) {
	var results []Activity
	if err := s.db.WithContext(ctx).Order("scheduled_date ASC, id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Create validates the input and persists a new activity. The schedule
// timestamp is required; an activity without one cannot be placed on the
// calendar.
func (s *Service) Create(ctx context.Context, actor string, input Input) (Activity, error) {
	if input.Title == "" {
		return Activity{}, fmt.Errorf("%w: title is required", ErrInvalidActivity)
	}
	if input.Type == "" {
		return Activity{}, fmt.Errorf("%w: type is required", ErrInvalidActivity)
	}
	if input.ScheduledAt == nil || input.ScheduledAt.IsZero() {
		return Activity{}, fmt.Errorf("%w: scheduled_at is required", ErrInvalidActivity)
	}

	activity := Activity{
		LeadID:      input.LeadID,
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		ScheduledAt: input.ScheduledAt,
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return Activity{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeActivity,
		Title:       "Activity scheduled",
		Description: fmt.Sprintf("%s %q scheduled for %s", activity.Type, activity.Title, activity.ScheduledAt.Format("2006-01-02 15:04")),
		UserID:      actor,
		LeadID:      activity.LeadID,
	})
	return activity, nil
}
