package normalize

import (
	"regexp"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// applyCustomPatterns implements step 2: case-insensitive whole-word
// replacement driven by the admin's custom_patterns map.
func applyCustomPatterns(text string, snap lexicon.LexiconSnapshot) string {
	for pattern, replacement := range snap.CustomPatterns {
		text = replaceWholeWordCI(text, pattern, func(string) string {
			return replacement
		})
	}
	return text
}

var articlePrefixRe = regexp.MustCompile(`(?i)\b(?:de|het)\s+(\d|element\b)`)

// cleanArticles implements step 3: drop a leading "de"/"het" immediately
// preceding a number or the word "element".
func cleanArticles(text string) string {
	return articlePrefixRe.ReplaceAllString(text, "${1}")
}
