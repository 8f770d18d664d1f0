package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("leads: database handle is required")
	errMissingAudit    = errors.New("leads: audit service is required")

	noOpLogger = zap.NewNop()

	// Fallback rotation when no team is configured.
	defaultResponsibles = []string{"Maria Santos", "Carlos Oliveira", "Ana Ferreira"}
)

// ServiceConfig describes the dependencies of the lead service.
type ServiceConfig struct {
	Database *gorm.DB
	Audit    *audit.Service
	Clock    func() time.Time
	Logger   *zap.Logger
	// Responsibles is the team rotation used when a lead arrives without
	// an assigned responsible.
	Responsibles []string
}

// Service implements lead CRUD and the pipeline stage transition. Every
// successful mutation records exactly one audit entry; audit failures are
// non-fatal by policy.
type Service struct {
	db           *gorm.DB
	audit        *audit.Service
	clock        func() time.Time
	logger       *zap.Logger
	responsibles []string
	rotation     atomic.Uint64
}

// NewService constructs the lead service.
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
	if len(cfg.Responsibles) == 0 {
		cfg.Responsibles = defaultResponsibles
	}
	return &Service{
		db:           cfg.Database,
		audit:        cfg.Audit,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		responsibles: cfg.Responsibles,
	}, nil
}

// List returns all leads, newest first.
func (s *Service) List(ctx context.Context) ([]Lead, error) {
	var results []Lead
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Create validates the input, applies defaults and persists a new lead.
func (s *Service) Create(ctx context.Context, actor string, input Input) (Lead, error) {
	lead, err := s.buildLead(input)
	if err != nil {
		return Lead{}, err
	}

	if err := s.ensureEmailAvailable(ctx, lead.Email, 0); err != nil {
		return Lead{}, err
	}

	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		// A concurrent create can slip past the pre-check and trip the
		// unique index instead.
		if isDuplicateKey(err) {
			return Lead{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, lead.Email)
		}
		return Lead{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeLead,
		Title:       "New lead created",
		Description: fmt.Sprintf("Lead %s added to the pipeline with status %s", lead.Name, lead.Status),
		UserID:      actor,
		LeadID:      &lead.ID,
	})
	return lead, nil
}

// Update replaces the mutable fields of a lead. The caller supplies the
// complete record; absent optional fields fall back to defaults exactly
// like Create.
func (s *Service) Update(ctx context.Context, actor string, id uint, input Input) (Lead, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return Lead{}, err
	}

	replacement, err := s.buildLead(input)
	if err != nil {
		return Lead{}, err
	}
	if err := s.ensureEmailAvailable(ctx, replacement.Email, id); err != nil {
		return Lead{}, err
	}

	replacement.ID = existing.ID
	replacement.CreatedAt = existing.CreatedAt
	replacement.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&replacement).Error; err != nil {
		if isDuplicateKey(err) {
			return Lead{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, replacement.Email)
		}
		return Lead{}, err
	}

	entry := audit.Entry{
		Type:   audit.TypeLead,
		UserID: actor,
		LeadID: &replacement.ID,
	}
	if existing.Status != replacement.Status {
		entry.Title = "Lead status updated"
		entry.Description = fmt.Sprintf("Lead %s moved from %s to %s", replacement.Name, existing.Status, replacement.Status)
	} else {
		entry.Title = "Lead updated"
		entry.Description = fmt.Sprintf("Lead %s updated", replacement.Name)
	}
	s.audit.Record(ctx, entry)

	return replacement, nil
}

// SetStatus assigns a new pipeline stage. No transition graph is enforced:
// any stage can be assigned from any other, including re-assigning the
// current one, and each call records one transition entry.
func (s *Service) SetStatus(ctx context.Context, actor string, id uint, rawStatus string) (Lead, error) {
	newStatus, err := ParseStatus(rawStatus)
	if err != nil {
		return Lead{}, err
	}

	lead, err := s.load(ctx, id)
	if err != nil {
		return Lead{}, err
	}

	oldStatus := lead.Status
	lead.Status = newStatus
	lead.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(&Lead{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": lead.Status, "updated_at": lead.UpdatedAt}).Error; err != nil {
		return Lead{}, err
	}

	// Status write and audit append are deliberately two independent
	// operations: a failed append must not roll back the transition.
	s.audit.Record(ctx, audit.Entry{
		Type:        audit.TypeLead,
		Title:       "Lead status updated",
		Description: fmt.Sprintf("Lead %s moved from %s to %s", lead.Name, oldStatus, newStatus),
		UserID:      actor,
		LeadID:      &lead.ID,
	})
	return lead, nil
}

// Delete removes a lead and its notes. Deleting an id that does not exist
// succeeds without side effects, so repeated deletes stay safe for the
// HTTP layer.
func (s *Service) Delete(ctx context.Context, actor string, id uint) error {
	var name string
	deleted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Lead
		err := tx.Where("id = ?", id).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		name = existing.Name

		if err := tx.Exec("DELETE FROM notes WHERE lead_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Lead{}, id).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		s.audit.Record(ctx, audit.Entry{
			Type:        audit.TypeLead,
			Title:       "Lead deleted",
			Description: fmt.Sprintf("Lead %s removed along with its notes", name),
			UserID:      actor,
			LeadID:      &id,
		})
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uint) (Lead, error) {
	var lead Lead
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Lead{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, email string, selfID uint) error {
	var count int64
	query := s.db.WithContext(ctx).Model(&Lead{}).Where("email = ?", email)
	if selfID != 0 {
		query = query.Where("id <> ?", selfID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: leads.email")
}

func (s *Service) buildLead(input Input) (Lead, error) {
	if input.Name == "" {
		return Lead{}, fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	if input.Email == "" {
		return Lead{}, fmt.Errorf("%w: email is required", ErrInvalidLead)
	}

	status := StatusNew
	if input.Status != "" {
		parsed, err := ParseStatus(input.Status)
		if err != nil {
			return Lead{}, err
		}
		status = parsed
	}

	temperature := TemperatureWarm
	if input.Temperature != "" {
		parsed, err := ParseTemperature(input.Temperature)
		if err != nil {
			return Lead{}, err
		}
		temperature = parsed
	}

	score := defaultScore
	if input.Score != nil {
		score = *input.Score
	}
	if score < 0 || score > maxScore {
		return Lead{}, fmt.Errorf("%w: score %d outside 0-%d", ErrInvalidLead, score, maxScore)
	}

	value := decimal.Zero
	if input.Value != nil {
		value = *input.Value
	}
	if value.IsNegative() {
		return Lead{}, fmt.Errorf("%w: value must not be negative", ErrInvalidLead)
	}

	responsible := input.Responsible
	if responsible == "" {
		responsible = s.nextResponsible()
	}

	lastContact := input.LastContact
	if lastContact == nil {
		today := s.clock().UTC().Truncate(24 * time.Hour)
		lastContact = &today
	}

	return Lead{
		Name:        input.Name,
		Company:     input.Company,
		Email:       input.Email,
		Phone:       input.Phone,
		Position:    input.Position,
		Source:      input.Source,
		Status:      status,
		Responsible: responsible,
		Score:       score,
		Temperature: temperature,
		Value:       value,
		Notes:       input.Notes,
		LastContact: lastContact,
	}, nil
}

func (s *Service) nextResponsible() string {
	index := s.rotation.Add(1) - 1
	return s.responsibles[index%uint64(len(s.responsibles))]
}
