package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var clickbaitPhrases = []string{
	"shocking",
	"secret",
	"you won't believe",
	"urgent",
	"share this",
	"censored",
	"they don't want you to know",
}

// RedFlags returns style warnings for the text. The strings are user-facing
// and appear verbatim in analysis explanations.
func RedFlags(text string) []string {
	var flags []string

	if strings.Count(text, "!") > 2 {
		flags = append(flags, "Excessive exclamation marks (sensationalism)")
	}
	if allCaps(text) {
		flags = append(flags, "Text in ALL CAPS (aggressive formatting)")
	}

	lower := strings.ToLower(text)
	for _, phrase := range clickbaitPhrases {
		if strings.Contains(lower, phrase) {
			flags = append(flags, "Contains clickbait trigger words")
			break
		}
	}
	return flags
}

// allCaps reports whether a text longer than 20 runes is written entirely in
// capitals. Short strings like tickers and acronyms do not count.
func allCaps(text string) bool {
	if utf8.RuneCountInString(text) <= 20 {
		return false
	}
	hasLetter := false
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return hasLetter
}
