package database

import (
	"fmt"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/notes"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
	"github.com/generallabsolutions/crm-backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate creates the CRM schema and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&leads.Lead{},
		&tasks.Task{},
		&activities.Activity{},
		&audit.Entry{},
		&notes.Note{},
		&users.User{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
