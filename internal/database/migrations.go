package database

import (
	"encoding/json"
	"time"

	"github.com/fentro/cms-console/internal/kvstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationResetCorruptToastBookkeeping = "2025-07-20_reset_corrupt_toast_bookkeeping"

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
		{name: migrationResetCorruptToastBookkeeping, apply: resetCorruptToastBookkeeping},
	}

	for _, migration := range migrations {
		var applied int64
		if err := db.Model(&migrationRecord{}).Where("name = ?", migration.name).Count(&applied).Error; err != nil {
			return err
		}
		if applied > 0 {
			continue
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

// Older builds wrote the bookkeeping list as a comma separated string.
func resetCorruptToastBookkeeping(db *gorm.DB) error {
	var entries []kvstore.Entry
	result := db.Where("entry_key = ?", kvstore.KeyShownNotificationIDs).Limit(1).Find(&entries)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}
	var ids []string
	if json.Unmarshal([]byte(entries[0].Value), &ids) == nil {
		return nil
	}
	return db.Model(&kvstore.Entry{}).
		Where("entry_key = ?", kvstore.KeyShownNotificationIDs).
		Update("entry_value", "[]").Error
}
