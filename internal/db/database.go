package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/models"
)

var DB *gorm.DB

// InitDB opens the database and migrates the launchpad tables.
// Returns nil, nil when no DSN is configured.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		logrus.Warn("⚠️ [DB] No database DSN configured, trade records are kept in memory")
		return nil, nil
	}

	logrus.Info("🔌 [DB] Connecting to database")

	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logrus.Info("✅ [DB] Database connected successfully")

	logrus.Info("🚀 [DB] Starting schema migration")
	if err := gdb.AutoMigrate(
		&models.TradeRecord{},
		&models.CreatedToken{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate failed: %w", err)
	}
	logrus.Info("✅ [DB] Schema migrated successfully")

	DB = gdb
	return gdb, nil
}

// Close closes the underlying connection pool
func Close(gdb *gorm.DB) {
	if gdb == nil {
		return
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
