package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(testContext *testing.T) (*Service, *gorm.DB) {
	testContext.Helper()

	dsn := fmt.Sprintf("file:activities_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&Activity{}, &audit.Entry{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	auditService, err := audit.NewService(audit.ServiceConfig{Database: database})
	if err != nil {
		testContext.Fatalf("failed to build audit service: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: database, Audit: auditService})
	if err != nil {
		testContext.Fatalf("failed to build activity service: %v", err)
	}
	return service, database
}

func TestCreateRequiresSchedule(testContext *testing.T) {
	service, _ := newTestService(testContext)

	tests := []struct {
		name  string
		input Input
	}{
		{name: "missing title", input: Input{Type: "call", ScheduledAt: timePointer(time.Now())}},
		{name: "missing type", input: Input{Title: "Demo", ScheduledAt: timePointer(time.Now())}},
		{name: "missing schedule", input: Input{Type: "call", Title: "Demo"}},
	}
	for _, tt := range tests {
		testContext.Run(tt.name, func(testContext *testing.T) {
			if _, err := service.Create(context.Background(), "maria", tt.input); !errors.Is(err, ErrInvalidActivity) {
				testContext.Fatalf("expected ErrInvalidActivity, got %v", err)
			}
		})
	}
}

func TestCreatePersistsAndLogs(testContext *testing.T) {
	service, database := newTestService(testContext)

	scheduledAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	leadID := uint(3)
	activity, err := service.Create(context.Background(), "maria", Input{
		LeadID:      &leadID,
		Type:        "meeting",
		Title:       "Kickoff",
		ScheduledAt: &scheduledAt,
	})
	if err != nil {
		testContext.Fatalf("unexpected create error: %v", err)
	}
	if activity.ID == 0 {
		testContext.Fatalf("expected activity to be assigned an id")
	}

	var entry audit.Entry
	if err := database.Where("type = ?", audit.TypeActivity).Take(&entry).Error; err != nil {
		testContext.Fatalf("expected an audit entry: %v", err)
	}
	if entry.LeadID == nil || *entry.LeadID != leadID {
		testContext.Fatalf("expected audit entry to reference lead %d, got %v", leadID, entry.LeadID)
	}
}

func TestListOrdersBySchedule(testContext *testing.T) {
	service, _ := newTestService(testContext)

	later := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := service.Create(context.Background(), "maria", Input{Type: "call", Title: "Later", ScheduledAt: &later}); err != nil {
		testContext.Fatalf("unexpected create error: %v", err)
	}
	if _, err := service.Create(context.Background(), "maria", Input{Type: "call", Title: "Earlier", ScheduledAt: &earlier}); err != nil {
		testContext.Fatalf("unexpected create error: %v", err)
	}

	listed, err := service.List(context.Background())
	if err != nil {
		testContext.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 2 || listed[0].Title != "Earlier" {
		testContext.Fatalf("expected schedule ordering, got %+v", listed)
	}
}

func timePointer(value time.Time) *time.Time {
	return &value
}
