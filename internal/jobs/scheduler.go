package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
)

// Every morning before the workday starts.
const defaultSweepSpec = "0 8 * * *"

var (
	errMissingTaskService  = errors.New("jobs: task service is required")
	errMissingAuditService = errors.New("jobs: audit service is required")

	noOpLogger = zap.NewNop()
)

// SchedulerConfig describes the dependencies of the background scheduler.
type SchedulerConfig struct {
	Tasks     *tasks.Service
	Audit     *audit.Service
	Clock     func() time.Time
	Logger    *zap.Logger
	SweepSpec string
}

// Scheduler runs periodic maintenance over the CRM data. Currently that is
// a daily sweep flagging overdue pending tasks on the log timeline.
type Scheduler struct {
	cron   *cron.Cron
	tasks  *tasks.Service
	audit  *audit.Service
	clock  func() time.Time
	logger *zap.Logger
	spec   string
}

// NewScheduler constructs the scheduler without starting it.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Tasks == nil {
		return nil, errMissingTaskService
	}
	if cfg.Audit == nil {
		return nil, errMissingAuditService
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = noOpLogger
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = defaultSweepSpec
	}
	return &Scheduler{
		cron:   cron.New(),
		tasks:  cfg.Tasks,
		audit:  cfg.Audit,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		spec:   cfg.SweepSpec,
	}, nil
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.SweepOverdueTasks(context.Background()); err != nil {
			s.logger.Error("overdue task sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("jobs: failed to register overdue sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("background scheduler started", zap.String("sweep_spec", s.spec))
	return nil
}

// Stop halts the cron loop and returns once running jobs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOverdueTasks flags every pending task past its due date with one
// system log entry and returns how many were flagged. Tasks already
// flagged on a previous day are flagged again; the timeline reads as a
// daily reminder.
func (s *Scheduler) SweepOverdueTasks(ctx context.Context) (int, error) {
	now := s.clock().UTC()
	overdue, err := s.tasks.ListOverduePending(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	for _, task := range overdue {
		s.audit.Record(ctx, audit.Entry{
			Type:        audit.TypeSystem,
			Title:       "Task overdue",
			Description: fmt.Sprintf("Task %q was due on %s and is still pending", task.Title, task.DueDate.Format("2006-01-02")),
			UserID:      "scheduler",
			LeadID:      task.LeadID,
		})
	}
	s.logger.Info("overdue task sweep finished", zap.Int("flagged", len(overdue)))
	return len(overdue), nil
}
