package normalize

import "regexp"

var (
	trailingBangQuestionSemiRe = regexp.MustCompile(`\s*[!?;]+\s*$`)
	sentenceFinalPeriodRe      = regexp.MustCompile(`(\D)\.\s*$`)
	wordCommaRe                = regexp.MustCompile(`(\pL),(\s|$)`)
	multiSpaceRe               = regexp.MustCompile(`\s{2,}`)
)

// postprocessPunctuation implements step 9: drop a trailing exclamation,
// question, or semicolon mark, drop a sentence-final period only when it
// isn't glued to a digit (which would make it part of a decimal or unit),
// and drop a comma immediately glued to a word (e.g. "karius," -> "karius").
// A comma after a digit is left alone — it separates list items (e.g.
// "1, 2, 3") rather than trailing a word, and stripping it would corrupt
// that reading.
func postprocessPunctuation(text string) string {
	text = trailingBangQuestionSemiRe.ReplaceAllString(text, "")
	text = sentenceFinalPeriodRe.ReplaceAllString(text, "$1")
	text = wordCommaRe.ReplaceAllString(text, "$1$2")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return text
}
