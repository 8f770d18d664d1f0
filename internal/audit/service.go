package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultQueryLimit = 100

var (
	errMissingDatabase = errors.New("audit: database handle is required")
	// ErrInvalidEntry indicates a log entry is missing required fields.
	ErrInvalidEntry = errors.New("audit: invalid log entry")

	noOpLogger = zap.NewNop()
)

// Notifier receives every successfully appended entry. Used to push
// audit events to connected dashboards.
type Notifier interface {
	NotifyEntry(entry Entry)
}

// ServiceConfig describes the dependencies of the audit service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	Logger     *zap.Logger
	Notifier   Notifier
	QueryLimit int
}

// Service owns the append-only audit trail.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	logger     *zap.Logger
	notifier   Notifier
	queryLimit int
}

// NewService constructs the audit service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = noOpLogger
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = defaultQueryLimit
	}
	return &Service{
		db:         cfg.Database,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		notifier:   cfg.Notifier,
		queryLimit: cfg.QueryLimit,
	}, nil
}

// Append inserts one entry and returns the stored row. The timestamp is
// assigned by the store side at insertion, never taken from the caller,
// so log order tracks insertion order under a well-behaved clock.
func (s *Service) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.Type == "" {
		return Entry{}, fmt.Errorf("%w: type is required", ErrInvalidEntry)
	}
	if entry.Title == "" {
		return Entry{}, fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}

	entry.ID = 0
	entry.Timestamp = s.clock().UTC()
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Entry{}, err
	}

	if s.notifier != nil {
		s.notifier.NotifyEntry(entry)
	}
	return entry, nil
}

// Record appends an entry on behalf of another mutation and swallows any
// failure. A lost audit row must never fail the mutation it describes;
// the failure goes to the diagnostic log only.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if _, err := s.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			zap.String("type", entry.Type),
			zap.String("title", entry.Title),
			zap.Error(err))
	}
}

// Query returns entries newest first, capped at the configured limit.
// Filter fields apply conjunctively; date bounds are inclusive.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := s.db.WithContext(ctx).Model(&Entry{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Start != nil {
		start := startOfDay(*filter.Start)
		query = query.Where("timestamp >= ?", start)
	}
	if filter.End != nil {
		end := startOfDay(*filter.End).AddDate(0, 0, 1)
		query = query.Where("timestamp < ?", end)
	}

	var entries []Entry
	if err := query.Order("timestamp DESC, id DESC").Limit(s.queryLimit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func startOfDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
