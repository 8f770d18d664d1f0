package notes

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
	errMissingDatabase = errors.New("notes: database handle is required")
	errMissingAudit    = errors.New("notes: audit service is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the note service.
type ServiceConfig struct {
	Database *gorm.DB
	Audit    *audit.Service
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages lead notes.
type Service struct {
	db     *gorm.DB
	audit  *audit.Service
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the note service.
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

// List returns notes newest first. A non-zero leadID narrows the result to
// that lead's notes.
func (s *Service) List(ctx context.Context, leadID uint) ([]Note, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if leadID != 0 {
		query = query.Where("lead_id = ?", leadID)
	}

	var results []Note
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Create validates the input and persists a new note.
func (s *Service) Create(ctx context.Context, actor string, input Input) (Note, error) {
	if input.LeadID == 0 {
		return Note{}, fmt.Errorf("%w: lead_id is required", ErrInvalidNote)
	}
	if input.Content == "" {
		return Note{}, fmt.Errorf("%w: content is required", ErrInvalidNote)
	}

	color := input.Color
	if color == "" {
		color = defaultColor
	}
	userID := input.UserID
	if userID == "" {
		userID = actor
	}

	note := Note{
		LeadID:  input.LeadID,
		Content: input.Content,
		Color:   color,
		UserID:  userID,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return Note{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeNote,
		Title:       "Note added",
		Description: fmt.Sprintf("Note pinned to lead %d", note.LeadID),
		UserID:      actor,
		LeadID:      &note.LeadID,
	})
	return note, nil
}

// Delete removes a note. Deleting a missing id succeeds without side effects.
func (s *Service) Delete(ctx context.Context, actor string, id uint) error {
	var note Note
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&Note{}, id).Error; err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeNote,
		Title:       "Note removed",
		Description: fmt.Sprintf("Note removed from lead %d", note.LeadID),
		UserID:      actor,
		LeadID:      &note.LeadID,
	})
	return nil
}
