package lexicon

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// lexiconDoc is the JSON-serializable mirror of LexiconSnapshot, used for
// the bulk lexicon document. Sets are represented as slices since JSON has
// no set type.
type lexiconDoc struct {
	CanonicalTerms        map[string]string            `json:"canonical_terms"`
	CategoryTerms         map[string][]string           `json:"category_terms"`
	VariantToCanonical    map[string]map[string]string  `json:"variant_to_canonical"`
	SoundexIndex          map[string][]string           `json:"soundex_index"`
	DutchNumberWords      map[string]string             `json:"dutch_number_words"`
	ElementSeparators     []string                       `json:"element_separators"`
	CanonicalHyphenated   []string                       `json:"canonical_hyphenated"`
	SuffixGroups          map[string]string              `json:"suffix_groups"`
	Units                 []string                       `json:"units"`
	DentalContextTriggers []string                       `json:"dental_context_triggers"`
}

// configDoc is the JSON-serializable mirror of the admin-tunable subset of
// Config.
type configDoc struct {
	DefaultLanguage        string  `json:"default_language"`
	MinSimilarityThreshold float64 `json:"min_similarity_threshold"`
	SmallThresholdBytes    int     `json:"small_threshold_bytes"`
	AccumulateCount        int     `json:"accumulate_count"`
	MaxDurationMs          int     `json:"max_duration_ms"`
	AsrPrompt              string  `json:"asr_prompt"`
}

// Store persists configuration and lexicon documents. It is the only
// component in C1 that touches the database; the cache above it never talks
// to gorm directly.
type Store interface {
	LoadConfig(adminID string) (Config, error)
	SaveConfig(adminID string, cfg Config) error
	LoadLexicon(adminID string) (LexiconSnapshot, error)
	SaveLexicon(adminID string, snap LexiconSnapshot) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) LoadConfig(adminID string) (Config, error) {
	var row ConfigDocument
	err := s.db.Where("admin_id = ?", adminID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Config{AdminID: adminID, Version: 0}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var doc configDoc
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &doc); err != nil {
			return Config{}, fmt.Errorf("%w: corrupt config document: %v", ErrStoreUnavailable, err)
		}
	}

	return Config{
		AdminID:                adminID,
		DefaultLanguage:        doc.DefaultLanguage,
		MinSimilarityThreshold: doc.MinSimilarityThreshold,
		SmallThresholdBytes:    doc.SmallThresholdBytes,
		AccumulateCount:        doc.AccumulateCount,
		MaxDurationMs:          doc.MaxDurationMs,
		AsrPrompt:              doc.AsrPrompt,
		Version:                row.Version,
	}, nil
}

func (s *gormStore) SaveConfig(adminID string, cfg Config) error {
	payload, err := json.Marshal(configDoc{
		DefaultLanguage:        cfg.DefaultLanguage,
		MinSimilarityThreshold: cfg.MinSimilarityThreshold,
		SmallThresholdBytes:    cfg.SmallThresholdBytes,
		AccumulateCount:        cfg.AccumulateCount,
		MaxDurationMs:          cfg.MaxDurationMs,
		AsrPrompt:              cfg.AsrPrompt,
	})
	if err != nil {
		return fmt.Errorf("marshal config document: %w", err)
	}

	row := ConfigDocument{
		AdminID:  adminID,
		Settings: payload,
		Version:  cfg.Version,
	}
	err = s.db.Where("admin_id = ?", adminID).
		Assign(ConfigDocument{Settings: payload, Version: cfg.Version}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *gormStore) LoadLexicon(adminID string) (LexiconSnapshot, error) {
	snap := Empty(adminID)

	var row LexiconDocument
	err := s.db.Where("admin_id = ?", adminID).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no bulk document yet; fall through to merge point-write tables
	case err != nil:
		return LexiconSnapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		var doc lexiconDoc
		if len(row.Lexicon) > 0 {
			if err := json.Unmarshal(row.Lexicon, &doc); err != nil {
				return LexiconSnapshot{}, fmt.Errorf("%w: corrupt lexicon document: %v", ErrStoreUnavailable, err)
			}
			applyDoc(&snap, doc)
		}
		snap.Version = row.Version
	}

	var protectedRows []ProtectedWordDocument
	if err := s.db.Where("admin_id = ?", adminID).Find(&protectedRows).Error; err != nil {
		return LexiconSnapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, p := range protectedRows {
		snap.ProtectedWords[p.Word] = struct{}{}
	}

	var patternRows []CustomPatternDocument
	if err := s.db.Where("admin_id = ?", adminID).Find(&patternRows).Error; err != nil {
		return LexiconSnapshot{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, p := range patternRows {
		snap.CustomPatterns[p.Pattern] = p.Replace
	}

	snap.LoadedAt = time.Now()
	return snap, nil
}

func applyDoc(snap *LexiconSnapshot, doc lexiconDoc) {
	if doc.CanonicalTerms != nil {
		snap.CanonicalTerms = doc.CanonicalTerms
	}
	if doc.CategoryTerms != nil {
		snap.CategoryTerms = doc.CategoryTerms
	}
	if doc.VariantToCanonical != nil {
		snap.VariantToCanonical = doc.VariantToCanonical
	}
	if doc.SoundexIndex != nil {
		snap.SoundexIndex = doc.SoundexIndex
	}
	if doc.DutchNumberWords != nil {
		snap.DutchNumberWords = doc.DutchNumberWords
	}
	if doc.ElementSeparators != nil {
		snap.ElementSeparators = doc.ElementSeparators
	}
	if doc.SuffixGroups != nil {
		snap.SuffixGroups = doc.SuffixGroups
	}
	if doc.Units != nil {
		snap.Units = doc.Units
	}
	for _, h := range doc.CanonicalHyphenated {
		snap.CanonicalHyphenated[h] = struct{}{}
	}
	for _, t := range doc.DentalContextTriggers {
		snap.DentalContextTriggers[t] = struct{}{}
	}
}

func toDoc(snap LexiconSnapshot) lexiconDoc {
	hyphenated := make([]string, 0, len(snap.CanonicalHyphenated))
	for h := range snap.CanonicalHyphenated {
		hyphenated = append(hyphenated, h)
	}
	triggers := make([]string, 0, len(snap.DentalContextTriggers))
	for t := range snap.DentalContextTriggers {
		triggers = append(triggers, t)
	}
	return lexiconDoc{
		CanonicalTerms:        snap.CanonicalTerms,
		CategoryTerms:         snap.CategoryTerms,
		VariantToCanonical:    snap.VariantToCanonical,
		SoundexIndex:          snap.SoundexIndex,
		DutchNumberWords:      snap.DutchNumberWords,
		ElementSeparators:     snap.ElementSeparators,
		CanonicalHyphenated:   hyphenated,
		SuffixGroups:          snap.SuffixGroups,
		Units:                 snap.Units,
		DentalContextTriggers: triggers,
	}
}

func (s *gormStore) SaveLexicon(adminID string, snap LexiconSnapshot) error {
	payload, err := json.Marshal(toDoc(snap))
	if err != nil {
		return fmt.Errorf("marshal lexicon document: %w", err)
	}

	row := LexiconDocument{AdminID: adminID, Lexicon: payload, Version: snap.Version}
	err = s.db.Where("admin_id = ?", adminID).
		Assign(LexiconDocument{Lexicon: payload, Version: snap.Version}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := s.db.Where("admin_id = ?", adminID).Delete(&ProtectedWordDocument{}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for word := range snap.ProtectedWords {
		if err := s.db.Create(&ProtectedWordDocument{AdminID: adminID, Word: word}).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if err := s.db.Where("admin_id = ?", adminID).Delete(&CustomPatternDocument{}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for pattern, replace := range snap.CustomPatterns {
		if err := s.db.Create(&CustomPatternDocument{AdminID: adminID, Pattern: pattern, Replace: replace}).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return nil
}
