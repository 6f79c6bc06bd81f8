package normalize

import (
	"strings"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// applyHyphenPolicy implements step 6: a canonical hyphenated term is left
// untouched, any other hyphen is turned into a space so the phonetic stage
// sees separate tokens instead of one unmatched compound.
func applyHyphenPolicy(text string, snap lexicon.LexiconSnapshot) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !strings.Contains(f, "-") {
			continue
		}
		seg := splitPunct(f)
		if _, ok := snap.CanonicalHyphenated[strings.ToLower(seg.core)]; ok {
			continue
		}
		seg.core = strings.ReplaceAll(seg.core, "-", " ")
		fields[i] = seg.String()
	}
	return strings.Join(fields, " ")
}
