package db

import (
	"fmt"
	"time"

	"github.com/jwvaartjes/dental-relay/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitDB opens the gorm connection backing both the lexicon store (C1) and
// the admin account table (C9).
func InitDB(dsn string, cfg config.Settings) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(cfg.DB.PoolSize)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
