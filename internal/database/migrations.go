package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationTranslateLegacyEnums = "2026-03-02_translate_legacy_enum_values"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationTranslateLegacyEnums, apply: translateLegacyEnumValues},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// The first deployment stored pipeline statuses and temperatures in
// Portuguese. Rows imported from that era are rewritten to the canonical
// English enums so the status state machine sees one vocabulary.
func translateLegacyEnumValues(db *gorm.DB) error {
	statusTranslations := map[string]string{
		"novo":        "new",
		"contato":     "contacted",
		"qualificado": "qualified",
		"proposta":    "proposal",
		"negociacao":  "negotiation",
		"fechado":     "won",
		"perdido":     "lost",
	}
	for legacy, canonical := range statusTranslations {
		if err := db.Exec("UPDATE leads SET status = ? WHERE status = ?", canonical, legacy).Error; err != nil {
			return err
		}
	}

	temperatureTranslations := map[string]string{
		"frio":   "cold",
		"morno":  "warm",
		"quente": "hot",
	}
	for legacy, canonical := range temperatureTranslations {
		if err := db.Exec("UPDATE leads SET temperature = ? WHERE temperature = ?", canonical, legacy).Error; err != nil {
			return err
		}
	}
	return nil
}
