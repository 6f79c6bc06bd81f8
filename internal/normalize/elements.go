package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// elementPairRe matches two single digits joined by an explicit space or
// hyphen separator. An empty separator is deliberately excluded: an
// already-combined two-digit token (e.g. produced by resolveDutchNumbers)
// must never be re-wrapped, which is what keeps the pipeline idempotent.
var elementPairRe = regexp.MustCompile(`\b(\d)([ -])(\d)\b`)

var dedupElementRe = regexp.MustCompile(`(?i)\b(element\s+\d{2})\s+element\s+(\d{2})\b`)

// validRanges are the FDI quadrant ranges a two-digit element code must
// fall within.
var validRanges = [][2]int{
	{11, 18}, {21, 28}, {31, 38}, {41, 48},
	{51, 55}, {61, 65}, {71, 75}, {81, 85},
}

func isValidElement(n int) bool {
	for _, r := range validRanges {
		if n >= r[0] && n <= r[1] {
			return true
		}
	}
	return false
}

// parseElements implements step 5: the element-number regex family.
func parseElements(text string, snap lexicon.LexiconSnapshot) string {
	text = elementPairRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := elementPairRe.FindStringSubmatch(match)
		d1, d2 := sub[1], sub[3]
		n, err := strconv.Atoi(d1 + d2)
		if err != nil || !isValidElement(n) {
			return match
		}
		return d1 + d2
	})

	// Re-scan to decide prefixing: operate word-wise so we can inspect the
	// token immediately preceding a freshly-combined two-digit code.
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for i, f := range fields {
		seg := splitPunct(f)
		if len(seg.core) == 2 && isDigits(seg.core) {
			n, _ := strconv.Atoi(seg.core)
			if isValidElement(n) && !wasAlreadyElementCode(fields, i) {
				precededByTrigger := i > 0 && isTrigger(fields[i-1], snap)
				if !precededByTrigger {
					out = append(out, "element")
				}
			}
		}
		out = append(out, f)
	}

	result := strings.Join(out, " ")
	result = dedupElementRe.ReplaceAllString(result, "$1")
	return result
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isTrigger(field string, snap lexicon.LexiconSnapshot) bool {
	seg := splitPunct(field)
	_, ok := snap.DentalContextTriggers[strings.ToLower(seg.core)]
	return ok
}

// wasAlreadyElementCode reports whether fields[i] is immediately preceded
// by the literal word "element", so the prefix is never duplicated.
func wasAlreadyElementCode(fields []string, i int) bool {
	if i == 0 {
		return false
	}
	seg := splitPunct(fields[i-1])
	return strings.EqualFold(seg.core, "element")
}
