package normalize

import (
	"strings"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// applyCanonicalCapitalization implements step 10: a token whose lowercase
// form matches a canonical term is rewritten to that term's stored casing.
// Protected spans have already been restored verbatim by this point and are
// left alone since their original casing is, by definition, correct.
func applyCanonicalCapitalization(text string, snap lexicon.LexiconSnapshot) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		seg := splitPunct(f)
		if seg.core == "" {
			continue
		}
		if _, protected := snap.ProtectedWords[strings.ToLower(seg.core)]; protected {
			continue
		}
		if canonical, ok := snap.CanonicalTerms[strings.ToLower(seg.core)]; ok {
			seg.core = canonical
			fields[i] = seg.String()
		}
	}
	return strings.Join(fields, " ")
}
