package lexicon

import (
	"sync"
	"testing"
)

// fakeStore is an in-memory Store used to exercise the Loader without a
// database.
type fakeStore struct {
	mu       sync.Mutex
	configs  map[string]Config
	lexicons map[string]LexiconSnapshot
	loads    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  map[string]Config{},
		lexicons: map[string]LexiconSnapshot{},
	}
}

func (f *fakeStore) LoadConfig(adminID string) (Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if cfg, ok := f.configs[adminID]; ok {
		return cfg, nil
	}
	return Config{AdminID: adminID}, nil
}

func (f *fakeStore) SaveConfig(adminID string, cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[adminID] = cfg
	return nil
}

func (f *fakeStore) LoadLexicon(adminID string) (LexiconSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.lexicons[adminID]; ok {
		return snap, nil
	}
	return Empty(adminID), nil
}

func (f *fakeStore) SaveLexicon(adminID string, snap LexiconSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lexicons[adminID] = snap
	return nil
}

func TestLoaderCachesAfterFirstLoad(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store)

	if _, err := loader.GetConfig("admin-1"); err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if _, err := loader.GetConfig("admin-1"); err != nil {
		t.Fatalf("GetConfig: %v", err)
	}

	if store.loads != 1 {
		t.Errorf("expected a single store load, got %d", store.loads)
	}
}

func TestLoaderAddCanonicalTermRejectsDuplicate(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store)

	if err := loader.AddCanonicalTerm("admin-1", "anatomy", "molaar"); err != nil {
		t.Fatalf("AddCanonicalTerm: %v", err)
	}
	if err := loader.AddCanonicalTerm("admin-1", "anatomy", "Molaar"); err == nil {
		t.Error("expected ErrConflict on duplicate canonical term, got nil")
	}

	snap, err := loader.GetLexicon("admin-1")
	if err != nil {
		t.Fatalf("GetLexicon: %v", err)
	}
	if snap.CanonicalTerms["molaar"] != "molaar" {
		t.Errorf("expected canonical term to be stored, got %q", snap.CanonicalTerms["molaar"])
	}
}

func TestLoaderRemoveCanonicalTermRequiresExisting(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store)

	if err := loader.RemoveCanonicalTerm("admin-1", "molaar"); err == nil {
		t.Error("expected ErrNotFound removing a term that was never added, got nil")
	}

	if err := loader.AddCanonicalTerm("admin-1", "anatomy", "molaar"); err != nil {
		t.Fatalf("AddCanonicalTerm: %v", err)
	}
	if err := loader.RemoveCanonicalTerm("admin-1", "molaar"); err != nil {
		t.Fatalf("RemoveCanonicalTerm: %v", err)
	}

	snap, err := loader.GetLexicon("admin-1")
	if err != nil {
		t.Fatalf("GetLexicon: %v", err)
	}
	if _, exists := snap.CanonicalTerms["molaar"]; exists {
		t.Error("expected canonical term to be removed")
	}
}

func TestLoaderMutateLexiconDoesNotMutateConcurrentReader(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store)

	first, err := loader.GetLexicon("admin-1")
	if err != nil {
		t.Fatalf("GetLexicon: %v", err)
	}

	if err := loader.AddCanonicalTerm("admin-1", "anatomy", "kies"); err != nil {
		t.Fatalf("AddCanonicalTerm: %v", err)
	}

	if _, exists := first.CanonicalTerms["kies"]; exists {
		t.Error("snapshot obtained before the mutation must not observe it")
	}
}

func TestLoaderSaveConfigBumpsVersion(t *testing.T) {
	store := newFakeStore()
	loader := NewLoader(store)

	if err := loader.SaveConfig("admin-1", Config{AdminID: "admin-1", DefaultLanguage: "nl"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := loader.SaveConfig("admin-1", Config{AdminID: "admin-1", DefaultLanguage: "nl"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	cfg, err := loader.GetConfig("admin-1")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Version != 2 {
		t.Errorf("expected version 2 after two saves, got %d", cfg.Version)
	}
}
