package tasks

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
	errMissingDatabase = errors.New("tasks: database handle is required")
	errMissingAudit    = errors.New("tasks: audit service is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the task service.
type ServiceConfig struct {
	Database *gorm.DB
	Audit    *audit.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service implements task CRUD. Every successful mutation records one
// audit entry.
type Service struct {
	db     *gorm.DB
	audit  *audit.Service
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the task service.
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

// List returns all tasks ordered by due date ascending, each joined with
// the name of its lead when one is attached.
func (s *Service) List(ctx context.Context) ([]TaskWithLead, error) {
	var results []TaskWithLead
	err := s.db.WithContext(ctx).Model(&Task{}).
		Select("tasks.*, COALESCE(leads.name, '') AS lead_name").
		Joins("LEFT JOIN leads ON leads.id = tasks.lead_id").
		Order("tasks.due_date ASC, tasks.id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Create validates the input, applies defaults and persists a new task.
func (s *Service) Create(ctx context.Context, actor string, input Input) (Task, error) {
	if input.Title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}

	priority := PriorityMedium
	if input.Priority != "" {
		parsed, err := ParsePriority(input.Priority)
		if err != nil {
			return Task{}, err
		}
		priority = parsed
	}

	status := StatusPending
	if input.Status != "" {
		parsed, err := ParseStatus(input.Status)
		if err != nil {
			return Task{}, err
		}
		status = parsed
	}

	task := Task{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    priority,
		Status:      status,
		LeadID:      input.LeadID,
		Assignee:    input.Assignee,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return Task{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeTask,
		Title:       "New task created",
		Description: fmt.Sprintf("Task %q created with priority %s", task.Title, task.Priority),
		UserID:      actor,
		LeadID:      task.LeadID,
	})
	return task, nil
}

// UpdateStatus toggles a task between pending and completed.
func (s *Service) UpdateStatus(ctx context.Context, actor string, id uint, rawStatus string) (Task, error) {
	newStatus, err := ParseStatus(rawStatus)
	if err != nil {
		return Task{}, err
	}

	var task Task
	loadErr := s.db.WithContext(ctx).Where("id = ?", id).Take(&task).Error
	if errors.Is(loadErr, gorm.ErrRecordNotFound) {
		return Task{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if loadErr != nil {
		return Task{}, loadErr
	}

	task.Status = newStatus
	task.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": task.Status, "updated_at": task.UpdatedAt}).Error; err != nil {
		return Task{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeTask,
		Title:       "Task status updated",
		Description: fmt.Sprintf("Task %q marked %s", task.Title, task.Status),
		UserID:      actor,
		LeadID:      task.LeadID,
	})
	return task, nil
}

// Delete removes a task. Deleting a missing id succeeds without side effects.
func (s *Service) Delete(ctx context.Context, actor string, id uint) error {
	var task Task
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&Task{}, id).Error; err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeTask,
		Title:       "Task deleted",
		Description: fmt.Sprintf("Task %q removed", task.Title),
		UserID:      actor,
		LeadID:      task.LeadID,
	})
	return nil
}

// ListOverduePending returns pending tasks whose due date passed before the
// given moment. Used by the scheduled overdue sweep.
func (s *Service) ListOverduePending(ctx context.Context, before time.Time) ([]Task, error) {
	var results []Task
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", StatusPending, before).
		Order("due_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
