package lexicon

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// cachedAdmin holds one admin's cached config and lexicon along with the
// version counter that is bumped on every write.
type cachedAdmin struct {
	config  Config
	lexicon LexiconSnapshot
}

// Loader is the C1 Config/Lexicon Loader contract: a read-through
// in-process cache keyed by admin id, backed by a persistent Store. Cache
// entries carry a version counter; admin writes bump the version and
// invalidate in place (no TTL eviction — memory is bounded by the number of
// distinct admins this process has served).
type Loader struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*cachedAdmin
}

func NewLoader(store Store) *Loader {
	return &Loader{
		store:   store,
		entries: make(map[string]*cachedAdmin),
	}
}

// GetConfig returns a deeply immutable snapshot of the admin's
// configuration, loading it from the store on first access.
func (l *Loader) GetConfig(adminID string) (Config, error) {
	l.mu.RLock()
	if e, ok := l.entries[adminID]; ok {
		cfg := e.config
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	return l.loadAdmin(adminID, func(e *cachedAdmin) Config { return e.config })
}

// GetLexicon returns the admin's current LexiconSnapshot, loading it from
// the store on first access.
func (l *Loader) GetLexicon(adminID string) (LexiconSnapshot, error) {
	l.mu.RLock()
	if e, ok := l.entries[adminID]; ok {
		snap := e.lexicon
		l.mu.RUnlock()
		return snap, nil
	}
	l.mu.RUnlock()

	_, err := l.loadAdmin(adminID, func(e *cachedAdmin) Config { return e.config })
	if err != nil {
		return LexiconSnapshot{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[adminID].lexicon, nil
}

// loadAdmin fills the cache entry for adminID from the store under a write
// lock, handling the case where a concurrent caller already populated it.
func (l *Loader) loadAdmin(adminID string, project func(*cachedAdmin) Config) (Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[adminID]; ok {
		return project(e), nil
	}

	cfg, err := l.store.LoadConfig(adminID)
	if err != nil {
		return Config{}, fmt.Errorf("load config for admin %s: %w", adminID, err)
	}
	lex, err := l.store.LoadLexicon(adminID)
	if err != nil {
		return Config{}, fmt.Errorf("load lexicon for admin %s: %w", adminID, err)
	}

	e := &cachedAdmin{config: cfg, lexicon: lex}
	l.entries[adminID] = e
	return project(e), nil
}

// SaveConfig persists cfg and atomically invalidates the cached entry by
// replacing it with the new version.
func (l *Loader) SaveConfig(adminID string, cfg Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[adminID]
	if !ok {
		stored, err := l.store.LoadConfig(adminID)
		if err != nil {
			return fmt.Errorf("load config for admin %s: %w", adminID, err)
		}
		loaded, err := l.store.LoadLexicon(adminID)
		if err != nil {
			return fmt.Errorf("load lexicon for admin %s: %w", adminID, err)
		}
		e = &cachedAdmin{config: stored, lexicon: loaded}
	}
	cfg.Version = e.config.Version + 1
	if err := l.store.SaveConfig(adminID, cfg); err != nil {
		return fmt.Errorf("save config for admin %s: %w", adminID, err)
	}
	e.config = cfg
	l.entries[adminID] = e
	return nil
}

// MutateLexicon applies fn to a copy of the admin's current snapshot,
// persists the result, bumps the version, and atomically swaps the cached
// snapshot. fn must not mutate its argument's maps in place if other
// goroutines might be reading the prior snapshot concurrently — callers
// should build fresh maps.
func (l *Loader) MutateLexicon(adminID string, fn func(LexiconSnapshot) (LexiconSnapshot, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[adminID]
	if !ok {
		stored, err := l.store.LoadConfig(adminID)
		if err != nil {
			return fmt.Errorf("load config for admin %s: %w", adminID, err)
		}
		loaded, err := l.store.LoadLexicon(adminID)
		if err != nil {
			return fmt.Errorf("load lexicon for admin %s: %w", adminID, err)
		}
		e = &cachedAdmin{config: stored, lexicon: loaded}
		l.entries[adminID] = e
	}

	next, err := fn(e.lexicon)
	if err != nil {
		return err
	}
	next.Version = e.lexicon.Version + 1
	next.AdminID = adminID

	if err := l.store.SaveLexicon(adminID, next); err != nil {
		return fmt.Errorf("save lexicon for admin %s: %w", adminID, err)
	}
	e.lexicon = next
	return nil
}

// ReplaceLexicon overwrites the admin's entire lexicon with snap (used by
// config restore), bumping the version the same way MutateLexicon does.
func (l *Loader) ReplaceLexicon(adminID string, snap LexiconSnapshot) error {
	return l.MutateLexicon(adminID, func(LexiconSnapshot) (LexiconSnapshot, error) {
		return snap, nil
	})
}

// AddCanonicalTerm adds a canonical term to a category, failing with
// ErrConflict if it already exists.
func (l *Loader) AddCanonicalTerm(adminID, category, term string) error {
	return l.MutateLexicon(adminID, func(snap LexiconSnapshot) (LexiconSnapshot, error) {
		lower := strings.ToLower(term)
		if _, exists := snap.CanonicalTerms[lower]; exists {
			return snap, fmt.Errorf("%w: term %q already canonical", ErrConflict, term)
		}
		next := cloneSnapshot(snap)
		next.CanonicalTerms[lower] = term
		next.CategoryTerms[category] = append(next.CategoryTerms[category], term)
		code := matchr.Soundex(lower)
		next.SoundexIndex[code] = append(next.SoundexIndex[code], term)
		return next, nil
	})
}

// RemoveCanonicalTerm removes a canonical term, failing with ErrNotFound if
// absent.
func (l *Loader) RemoveCanonicalTerm(adminID, term string) error {
	return l.MutateLexicon(adminID, func(snap LexiconSnapshot) (LexiconSnapshot, error) {
		lower := strings.ToLower(term)
		if _, exists := snap.CanonicalTerms[lower]; !exists {
			return snap, fmt.Errorf("%w: term %q not found", ErrNotFound, term)
		}
		next := cloneSnapshot(snap)
		delete(next.CanonicalTerms, lower)
		for cat, terms := range next.CategoryTerms {
			filtered := terms[:0:0]
			for _, t := range terms {
				if strings.ToLower(t) != lower {
					filtered = append(filtered, t)
				}
			}
			next.CategoryTerms[cat] = filtered
		}
		return next, nil
	})
}

// AddVariant maps a misheard/variant form to its canonical replacement
// within a category.
func (l *Loader) AddVariant(adminID, category, variant, canonical string) error {
	return l.MutateLexicon(adminID, func(snap LexiconSnapshot) (LexiconSnapshot, error) {
		next := cloneSnapshot(snap)
		if next.VariantToCanonical[category] == nil {
			next.VariantToCanonical[category] = map[string]string{}
		}
		next.VariantToCanonical[category][strings.ToLower(variant)] = canonical
		return next, nil
	})
}

func cloneSnapshot(snap LexiconSnapshot) LexiconSnapshot {
	next := snap
	next.CanonicalTerms = cloneStringMap(snap.CanonicalTerms)
	next.CategoryTerms = cloneStringSliceMap(snap.CategoryTerms)
	next.VariantToCanonical = make(map[string]map[string]string, len(snap.VariantToCanonical))
	for k, v := range snap.VariantToCanonical {
		next.VariantToCanonical[k] = cloneStringMap(v)
	}
	next.ProtectedWords = cloneSet(snap.ProtectedWords)
	next.CustomPatterns = cloneStringMap(snap.CustomPatterns)
	next.SoundexIndex = cloneStringSliceMap(snap.SoundexIndex)
	next.DutchNumberWords = cloneStringMap(snap.DutchNumberWords)
	next.CanonicalHyphenated = cloneSet(snap.CanonicalHyphenated)
	next.SuffixGroups = cloneStringMap(snap.SuffixGroups)
	next.DentalContextTriggers = cloneSet(snap.DentalContextTriggers)
	return next
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringSliceMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

