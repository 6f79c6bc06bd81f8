package normalize

import (
	"regexp"
	"strings"
)

// unitCompactRe collapses "<number> <unit>" into "<number><unit>", and spells
// out "procent" as "%". Decimals (already protected upstream) pass through
// the capture group untouched.
var unitCompactRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(mm|cm|ml|procent|%)`)

func compactUnits(text string) string {
	return unitCompactRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := unitCompactRe.FindStringSubmatch(match)
		num, unit := sub[1], sub[2]
		if strings.EqualFold(unit, "procent") {
			unit = "%"
		} else {
			unit = strings.ToLower(unit)
		}
		return num + unit
	})
}
