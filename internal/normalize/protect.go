package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

var (
	unitExprRe  = regexp.MustCompile(`(?i)\d+\s*(mm|cm|ml|%|procent)`)
	decimalRe   = regexp.MustCompile(`\d+[.,]\d+`)
	placeholder = func(i int) string { return fmt.Sprintf("PROT%d", i) }
	placeholderRe = regexp.MustCompile(`PROT(\d+)`)
)

// protectionMask is the result of pipeline step 1: a copy of the input with
// protected spans replaced by opaque placeholders, plus the original text
// of each span so it can be restored verbatim later.
type protectionMask struct {
	masked string
	spans  []string
}

// maskProtected implements step 1 of the Normalizer pipeline: protected
// words, unit expressions, decimal numbers, and canonical hyphenated terms
// are masked with placeholders so later stages never touch them.
func maskProtected(text string, snap lexicon.LexiconSnapshot) protectionMask {
	pm := protectionMask{}

	// Canonical hyphenated terms are matched as whole words first since they
	// may themselves contain digits or look unit-like.
	for hyph := range snap.CanonicalHyphenated {
		text = replaceWholeWordCI(text, hyph, func(match string) string {
			return pm.store(match)
		})
	}

	text = unitExprRe.ReplaceAllStringFunc(text, func(match string) string {
		return pm.store(match)
	})
	text = decimalRe.ReplaceAllStringFunc(text, func(match string) string {
		return pm.store(match)
	})

	for word := range snap.ProtectedWords {
		text = replaceWholeWordCI(text, word, func(match string) string {
			return pm.store(match)
		})
	}

	pm.masked = text
	return pm
}

func (pm *protectionMask) store(original string) string {
	idx := len(pm.spans)
	pm.spans = append(pm.spans, original)
	return placeholder(idx)
}

// unmask restores every placeholder in text to its original protected span,
// verbatim.
func (pm *protectionMask) unmask(text string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := placeholderRe.FindStringSubmatch(match)
		idx := atoiSafe(sub[1])
		if idx < 0 || idx >= len(pm.spans) {
			return match
		}
		return pm.spans[idx]
	})
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// replaceWholeWordCI replaces whole-word, case-insensitive occurrences of
// word in text, passing each match's original text to fn.
func replaceWholeWordCI(text, word string, fn func(string) string) string {
	if strings.TrimSpace(word) == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllStringFunc(text, fn)
}
