package normalize

import (
	"strings"
	"unicode"

	"github.com/jwvaartjes/dental-relay/internal/lexicon"
)

// windowSize bounds how far the dental-context-trigger search looks around
// a candidate pair of adjacent single-digit numerals.
const windowSize = 4

type segment struct {
	lead, core, trail string
}

func splitPunct(raw string) segment {
	runes := []rune(raw)
	i, j := 0, len(runes)
	for i < j && !isWordRune(runes[i]) {
		i++
	}
	for j > i && !isWordRune(runes[j-1]) {
		j--
	}
	return segment{
		lead:  string(runes[:i]),
		core:  string(runes[i:j]),
		trail: string(runes[j:]),
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (s segment) String() string {
	return s.lead + s.core + s.trail
}

func isSingleDigit(core string) bool {
	return len(core) == 1 && core[0] >= '0' && core[0] <= '9'
}

// resolveDutchNumbers implements step 4: replace Dutch number words with
// digits, then combine two adjacent 1-digit numerals into a 2-digit element
// code if the surrounding window contains a dental context trigger.
func resolveDutchNumbers(text string, snap lexicon.LexiconSnapshot) string {
	fields := strings.Fields(text)
	segs := make([]segment, len(fields))
	for i, f := range fields {
		segs[i] = splitPunct(f)
	}

	for i := range segs {
		lower := strings.ToLower(segs[i].core)
		if digit, ok := snap.DutchNumberWords[lower]; ok {
			segs[i].core = digit
		}
	}

	segs = combineElementDigitPairs(segs, snap)

	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.String()
	}
	return strings.Join(out, " ")
}

func combineElementDigitPairs(segs []segment, snap lexicon.LexiconSnapshot) []segment {
	result := make([]segment, 0, len(segs))
	i := 0
	for i < len(segs) {
		if i+1 < len(segs) &&
			isSingleDigit(segs[i].core) && segs[i].trail == "" &&
			isSingleDigit(segs[i+1].core) && segs[i+1].lead == "" &&
			windowHasTrigger(segs, i, i+1, snap) {
			combined := segment{
				lead:  segs[i].lead,
				core:  segs[i].core + segs[i+1].core,
				trail: segs[i+1].trail,
			}
			result = append(result, combined)
			i += 2
			continue
		}
		result = append(result, segs[i])
		i++
	}
	return result
}

func windowHasTrigger(segs []segment, lo, hi int, snap lexicon.LexiconSnapshot) bool {
	start := lo - windowSize
	if start < 0 {
		start = 0
	}
	end := hi + windowSize
	if end >= len(segs) {
		end = len(segs) - 1
	}
	for k := start; k <= end; k++ {
		if k == lo || k == hi {
			continue
		}
		if _, ok := snap.DentalContextTriggers[strings.ToLower(segs[k].core)]; ok {
			return true
		}
	}
	return false
}
