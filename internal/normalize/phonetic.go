package normalize

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// languageSubstitutions are folded into a token before scoring so that
// phonetically-equivalent Dutch spellings don't get penalized by raw edit
// distance, e.g. "karius" and "cariës" should compare as near-identical
// once both sides are folded.
var languageSubstitutions = []struct {
	from, to string
}{
	{"cc", "c"},
	{"uu", "u"},
	{"c", "k"},
	{"ï", "i"},
	{"ë", "e"},
}

func foldForComparison(s string) string {
	s = strings.ToLower(s)
	for _, sub := range languageSubstitutions {
		s = strings.ReplaceAll(s, sub.from, sub.to)
	}
	return s
}

// phoneticMatcher implements pipeline step 7: exact hit, else soundex
// bucket lookup scored by normalized edit distance with language-aware
// substitutions, never crossing morphological suffix-group boundaries.
type phoneticMatcher struct {
	minSimilarity float64
}

func newPhoneticMatcher(minSimilarity float64) *phoneticMatcher {
	return &phoneticMatcher{minSimilarity: minSimilarity}
}

// match attempts to correct token using snap's lexicon. It returns the
// replacement and true if a sufficiently confident match was found.
func (pm *phoneticMatcher) match(token string, snap lexicon.LexiconSnapshot) (string, bool) {
	lower := strings.ToLower(token)

	if canonical, ok := snap.CanonicalTerms[lower]; ok {
		return canonical, true
	}

	if len([]rune(token)) < 4 {
		return token, false
	}
	if _, protected := snap.ProtectedWords[lower]; protected {
		return token, false
	}
	if isDigitsOrUnit(token, snap.Units) {
		return token, false
	}

	code := matchr.Soundex(lower)
	candidates := snap.SoundexIndex[code]
	if len(candidates) == 0 {
		return token, false
	}

	tokenGroup := snap.SuffixGroups[lower]
	foldedToken := foldForComparison(token)

	best := ""
	bestScore := 0.0
	for _, candidate := range candidates {
		candLower := strings.ToLower(candidate)
		if tokenGroup != "" {
			if candGroup, ok := snap.SuffixGroups[candLower]; ok && candGroup != tokenGroup {
				continue
			}
		}

		foldedCand := foldForComparison(candidate)
		dist := matchr.Levenshtein(foldedToken, foldedCand)
		maxLen := len([]rune(foldedToken))
		if l := len([]rune(foldedCand)); l > maxLen {
			maxLen = l
		}
		if maxLen == 0 {
			continue
		}
		score := 1.0 - float64(dist)/float64(maxLen)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if best != "" && bestScore >= pm.minSimilarity {
		return best, true
	}
	return token, false
}

func isDigitsOrUnit(token string, units []string) bool {
	hasDigit := false
	onlyDigitsAndUnit := true
	lower := strings.ToLower(token)
	for _, u := range units {
		lower = strings.TrimSuffix(lower, u)
	}
	for _, r := range lower {
		if r >= '0' && r <= '9' {
			hasDigit = true
			continue
		}
		if r == '.' || r == ',' || r == '%' {
			continue
		}
		onlyDigitsAndUnit = false
		break
	}
	return hasDigit && onlyDigitsAndUnit
}
