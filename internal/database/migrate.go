package database

import (
	"fmt"

	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/lexicon"
	"gorm.io/gorm"
)

// MigrateDB runs AutoMigrate for the admin account table (C9) and the
// lexicon/config document tables (C1).
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&auth.Admin{}); err != nil {
		return fmt.Errorf("migrate admin table: %w", err)
	}
	if err := lexicon.MigrateDB(db); err != nil {
		return fmt.Errorf("migrate lexicon tables: %w", err)
	}
	return nil
}
