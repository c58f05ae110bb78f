package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store/sqlstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillDefaultCategory = "2026-10-12_backfill_default_category"
	migrationTrimVersionHistory      = "2026-10-12_trim_version_history"
)

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
		{name: migrationBackfillDefaultCategory, apply: backfillDefaultCategory},
		{name: migrationTrimVersionHistory, apply: trimVersionHistory},
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

// backfillDefaultCategory assigns the default category to rows written by
// clients that left it blank.
func backfillDefaultCategory(db *gorm.DB) error {
	for _, table := range []string{sqlstore.TableComponents, sqlstore.TableTrash} {
		err := db.Table(table).
			Where("category = ? OR category IS NULL", "").
			Update("category", library.DefaultCategory).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// trimVersionHistory enforces the retention cap on history imported from
// deployments that never pruned.
func trimVersionHistory(db *gorm.DB) error {
	var componentIDs []string
	if err := db.Table(sqlstore.TableVersions).Distinct("component_id").Pluck("component_id", &componentIDs).Error; err != nil {
		return err
	}
	for _, componentID := range componentIDs {
		if err := sqlstore.TrimVersions(db, componentID, library.MaxVersionsPerComponent); err != nil {
			return err
		}
	}
	return nil
}
