// Package normalize turns raw ASR transcript text into clinical shorthand:
// Dutch number words and FDI tooth notation are resolved, dentist-specific
// vocabulary is corrected against an admin's lexicon, and units/punctuation
// are tidied up for the transcript feed.
package normalize

import (
	"strings"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// Normalizer runs the ten-stage text pipeline against a lexicon snapshot.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// Normalize rewrites text using snap. Calling Normalize again on its own
// output is a no-op: every stage either masks what it must not touch or
// only ever rewrites raw input forms, never its own output forms.
func (n *Normalizer) Normalize(text string, snap lexicon.LexiconSnapshot, minSimilarity float64) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	mask := maskProtected(text, snap)
	t := mask.masked

	t = applyCustomPatterns(t, snap)
	t = cleanArticles(t)
	t = resolveDutchNumbers(t, snap)
	t = parseElements(t, snap)
	t = applyHyphenPolicy(t, snap)
	t = n.applyPhonetics(t, snap, minSimilarity)

	t = mask.unmask(t)
	t = compactUnits(t)
	t = postprocessPunctuation(t)
	t = applyCanonicalCapitalization(t, snap)

	return strings.TrimSpace(t)
}

func (n *Normalizer) applyPhonetics(text string, snap lexicon.LexiconSnapshot, minSimilarity float64) string {
	matcher := newPhoneticMatcher(minSimilarity)
	fields := strings.Fields(text)
	for i, f := range fields {
		seg := splitPunct(f)
		if seg.core == "" {
			continue
		}
		if corrected, ok := matcher.match(seg.core, snap); ok {
			seg.core = corrected
			fields[i] = seg.String()
		}
	}
	return strings.Join(fields, " ")
}
