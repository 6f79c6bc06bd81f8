package lexicon

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ConfigDocument is the per-admin configuration row. Settings is stored as
// a JSON blob so admin-tunable knobs can grow without a migration per field.
type ConfigDocument struct {
	AdminID   string          `gorm:"primaryKey;type:varchar(191)"`
	Settings  json.RawMessage `gorm:"type:json"`
	Version   int             `gorm:"not null;default:1"`
	CreatedAt time.Time       `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime(3)"`
}

func (ConfigDocument) TableName() string { return "config_documents" }

// LexiconDocument is the per-admin lexicon row, serialized as JSON matching
// LexiconSnapshot's field shape minus AdminID/Version/LoadedAt.
type LexiconDocument struct {
	AdminID   string          `gorm:"primaryKey;type:varchar(191)"`
	Lexicon   json.RawMessage `gorm:"type:json"`
	Version   int             `gorm:"not null;default:1"`
	CreatedAt time.Time       `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime(3)"`
}

func (LexiconDocument) TableName() string { return "lexicon_documents" }

// ProtectedWordDocument stores one protected word per row so admin edits are
// cheap point writes rather than full-document rewrites.
type ProtectedWordDocument struct {
	AdminID   string    `gorm:"primaryKey;type:varchar(191)"`
	Word      string    `gorm:"primaryKey;type:varchar(191)"`
	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
}

func (ProtectedWordDocument) TableName() string { return "protected_word_documents" }

// CustomPatternDocument stores one case-insensitive whole-word replacement
// rule per row.
type CustomPatternDocument struct {
	AdminID   string    `gorm:"primaryKey;type:varchar(191)"`
	Pattern   string    `gorm:"primaryKey;type:varchar(191)"`
	Replace   string    `gorm:"type:varchar(191);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`
}

func (CustomPatternDocument) TableName() string { return "custom_pattern_documents" }

// AllModels lists every gorm model owned by this package, for AutoMigrate.
func AllModels() []any {
	return []any{
		&ConfigDocument{},
		&LexiconDocument{},
		&ProtectedWordDocument{},
		&CustomPatternDocument{},
	}
}

// MigrateDB runs AutoMigrate for the lexicon package's tables.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
