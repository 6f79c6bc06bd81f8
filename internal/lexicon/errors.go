package lexicon

import "errors"

// ErrStoreUnavailable is returned whenever the persistent store cannot be
// reached; callers MUST surface it as a 5xx and never silently degrade to a
// stale or empty snapshot.
var ErrStoreUnavailable = errors.New("lexicon: store unavailable")

// ErrNotFound is returned by admin edit operations that target a term,
// category, or variant that does not exist.
var ErrNotFound = errors.New("lexicon: not found")

// ErrConflict is returned when an admin edit would violate a uniqueness
// invariant (e.g. adding a canonical term that already exists).
var ErrConflict = errors.New("lexicon: conflict")
