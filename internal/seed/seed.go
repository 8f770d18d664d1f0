package seed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
)

var errMissingDatabase = errors.New("seed: database handle is required")

// Apply inserts a demo data set the dashboard can render out of the box.
// It only runs against an empty store: any existing lead disables it.
// Rows are written directly, bypassing the services, so the demo data does
// not pollute the log timeline.
func Apply(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	if db == nil {
		return errMissingDatabase
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var count int64
	if err := db.WithContext(ctx).Model(&leads.Lead{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Debug("seed skipped, store already has leads", zap.Int64("leads", count))
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sampleLeads := sampleLeads()
		if err := tx.Create(&sampleLeads).Error; err != nil {
			return err
		}
		sampleTasks := sampleTasks(sampleLeads)
		if err := tx.Create(&sampleTasks).Error; err != nil {
			return err
		}
		sampleActivities := sampleActivities(sampleLeads)
		if err := tx.Create(&sampleActivities).Error; err != nil {
			return err
		}
		logger.Info("sample data seeded",
			zap.Int("leads", len(sampleLeads)),
			zap.Int("tasks", len(sampleTasks)),
			zap.Int("activities", len(sampleActivities)))
		return nil
	})
}

func sampleLeads() []leads.Lead {
	lastWeek := time.Now().UTC().AddDate(0, 0, -7)
	yesterday := time.Now().UTC().AddDate(0, 0, -1)

	return []leads.Lead{
		{
			Name: "Ava Thompson", Company: "Northwind Traders", Email: "ava.thompson@northwind.example",
			Phone: "+1 555 0101", Position: "Head of Procurement", Source: "website",
			Status: leads.StatusNew, Responsible: "Maria Santos", Score: 55,
			Temperature: leads.TemperatureWarm, Value: decimal.NewFromInt(12500),
			LastContact: &yesterday,
		},
		{
			Name: "Liam Carter", Company: "Fabrikam Inc", Email: "liam.carter@fabrikam.example",
			Phone: "+1 555 0102", Position: "CTO", Source: "referral",
			Status: leads.StatusContacted, Responsible: "Carlos Oliveira", Score: 70,
			Temperature: leads.TemperatureHot, Value: decimal.NewFromInt(48000),
			LastContact: &yesterday,
		},
		{
			Name: "Sofia Martinez", Company: "Contoso Ltd", Email: "sofia.martinez@contoso.example",
			Phone: "+1 555 0103", Position: "Operations Manager", Source: "linkedin",
			Status: leads.StatusQualified, Responsible: "Ana Ferreira", Score: 80,
			Temperature: leads.TemperatureHot, Value: decimal.NewFromInt(23000),
			LastContact: &lastWeek,
		},
		{
			Name: "Noah Williams", Company: "Adventure Works", Email: "noah.williams@adventure.example",
			Phone: "+1 555 0104", Position: "Founder", Source: "event",
			Status: leads.StatusProposal, Responsible: "Maria Santos", Score: 65,
			Temperature: leads.TemperatureWarm, Value: decimal.NewFromInt(9800),
			LastContact: &lastWeek,
		},
		{
			Name: "Emma Johnson", Company: "Tailspin Toys", Email: "emma.johnson@tailspin.example",
			Phone: "+1 555 0105", Position: "Purchasing Lead", Source: "cold-call",
			Status: leads.StatusNegotiation, Responsible: "Carlos Oliveira", Score: 85,
			Temperature: leads.TemperatureHot, Value: decimal.NewFromInt(61000),
			LastContact: &yesterday,
		},
		{
			Name: "Lucas Brown", Company: "Wide World Importers", Email: "lucas.brown@wideworld.example",
			Phone: "+1 555 0106", Position: "Logistics Director", Source: "website",
			Status: leads.StatusWon, Responsible: "Ana Ferreira", Score: 95,
			Temperature: leads.TemperatureHot, Value: decimal.NewFromInt(37500),
			LastContact: &lastWeek,
		},
	}
}

func sampleTasks(seeded []leads.Lead) []tasks.Task {
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	nextWeek := time.Now().UTC().AddDate(0, 0, 7)

	return []tasks.Task{
		{
			Title: "Send pricing proposal", Description: "Include the volume discount tiers",
			DueDate: &tomorrow, Priority: tasks.PriorityHigh, Status: tasks.StatusPending,
			LeadID: &seeded[3].ID, Assignee: seeded[3].Responsible,
		},
		{
			Title: "Schedule product demo", Description: "45 minute walkthrough with the ops team",
			DueDate: &nextWeek, Priority: tasks.PriorityMedium, Status: tasks.StatusPending,
			LeadID: &seeded[2].ID, Assignee: seeded[2].Responsible,
		},
		{
			Title: "Review contract redlines",
			DueDate: &tomorrow, Priority: tasks.PriorityHigh, Status: tasks.StatusPending,
			LeadID: &seeded[4].ID, Assignee: seeded[4].Responsible,
		},
	}
}

func sampleActivities(seeded []leads.Lead) []activities.Activity {
	inTwoDays := time.Now().UTC().AddDate(0, 0, 2)
	inFourDays := time.Now().UTC().AddDate(0, 0, 4)

	return []activities.Activity{
		{
			LeadID: &seeded[1].ID, Type: "call", Title: "Discovery call",
			Description: "Map the current tooling and pain points", ScheduledAt: &inTwoDays,
		},
		{
			LeadID: &seeded[4].ID, Type: "meeting", Title: "Negotiation round two",
			ScheduledAt: &inFourDays,
		},
	}
}
