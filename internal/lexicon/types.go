// Package lexicon implements the Config/Lexicon Loader: a read-through
// in-memory cache over per-admin configuration and normalization lexicon
// documents.
package lexicon

import "time"

// Config is the deeply-immutable per-admin configuration snapshot handed to
// callers. Mutating a returned Config must never affect the cache — callers
// receive a copy of the underlying value, never a shared pointer into
// mutable cache state.
type Config struct {
	AdminID               string
	DefaultLanguage        string
	MinSimilarityThreshold float64
	SmallThresholdBytes    int
	AccumulateCount        int
	MaxDurationMs          int
	AsrPrompt              string
	Version                int
}

// LexiconSnapshot is the immutable, read-only view of one admin's
// normalization lexicon. A new edit produces a brand new snapshot; the
// loader replaces its cached copy under its mutex rather than mutating
// fields in place.
type LexiconSnapshot struct {
	AdminID string
	Version int

	// CanonicalTerms holds the canonical (correctly cased) surface forms,
	// keyed by their lowercase form for case-insensitive lookup.
	CanonicalTerms map[string]string

	// CategoryTerms maps a lexicon category (e.g. "anatomy", "procedure")
	// to its member canonical terms.
	CategoryTerms map[string][]string

	// VariantToCanonical maps a lowercase misheard/variant form to its
	// canonical replacement, scoped per category.
	VariantToCanonical map[string]map[string]string

	// ProtectedWords must never be rewritten by the fuzzy/phonetic stage.
	ProtectedWords map[string]struct{}

	// CustomPatterns is a case-insensitive whole-word replacement map
	// applied early in the pipeline (e.g. "karius" -> "cariës").
	CustomPatterns map[string]string

	// SoundexIndex maps a soundex code to the canonical terms that hash to
	// it, supporting the phonetic bucket lookup in pipeline step 7.
	SoundexIndex map[string][]string

	// DutchNumberWords maps a Dutch number word to its digit string.
	DutchNumberWords map[string]string

	// ElementSeparators are the characters/tokens accepted between two
	// digits of a dental element number (e.g. "-", " ").
	ElementSeparators []string

	// CanonicalHyphenated is the set of hyphenated tokens kept as-is by
	// the hyphen policy (step 6), e.g. "peri-apicaal".
	CanonicalHyphenated map[string]struct{}

	// SuffixGroups partitions tokens into morphological families; the
	// fuzzy stage never maps a token across groups.
	SuffixGroups map[string]string

	// Units lists recognized unit suffixes for protection/compaction
	// (step 1 and step 8), e.g. "mm", "cm", "ml", "%".
	Units []string

	// DentalContextTriggers are words whose presence in the surrounding
	// window licenses combining two 1-digit numerals into an element code.
	DentalContextTriggers map[string]struct{}

	LoadedAt time.Time
}

// Empty returns a zero-value snapshot suitable as a safe default before the
// first successful load, so callers never dereference a nil map.
func Empty(adminID string) LexiconSnapshot {
	return LexiconSnapshot{
		AdminID:             adminID,
		CanonicalTerms:      map[string]string{},
		CategoryTerms:       map[string][]string{},
		VariantToCanonical:  map[string]map[string]string{},
		ProtectedWords:      map[string]struct{}{},
		CustomPatterns:      map[string]string{},
		SoundexIndex:        map[string][]string{},
		DutchNumberWords:    defaultDutchNumberWords(),
		ElementSeparators:   []string{"-", " ", ""},
		CanonicalHyphenated: map[string]struct{}{},
		SuffixGroups:        map[string]string{},
		Units:               []string{"mm", "cm", "ml", "%", "procent"},
		DentalContextTriggers: map[string]struct{}{
			"element": {}, "tand": {}, "kies": {}, "molaar": {}, "premolaar": {},
		},
		LoadedAt: time.Now(),
	}
}

func defaultDutchNumberWords() map[string]string {
	return map[string]string{
		"nul": "0", "een": "1", "één": "1", "twee": "2", "drie": "3",
		"vier": "4", "vijf": "5", "zes": "6", "zeven": "7", "acht": "8",
		"negen": "9",
	}
}
