// Package checker matches message text against a server's banned words.
package checker

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

type Verdict struct {
	Guilty       bool
	MatchedWords []string
}

// Check reports which banned entries occur in text. Single words match whole
// tokens and phrases match a contiguous run of tokens, both after folding case
// and accents. Each entry is reported once, in list order.
func Check(text string, bannedWords []string) Verdict {
	tokens := Tokenize(text)
	if len(tokens) == 0 || len(bannedWords) == 0 {
		return Verdict{}
	}

	var verdict Verdict
	seen := make(map[string]bool, len(bannedWords))
	for _, word := range bannedWords {
		phrase := Tokenize(word)
		if len(phrase) == 0 {
			continue
		}
		key := strings.Join(phrase, " ")
		if seen[key] {
			continue
		}
		if containsRun(tokens, phrase) {
			seen[key] = true
			verdict.MatchedWords = append(verdict.MatchedWords, word)
		}
	}
	verdict.Guilty = len(verdict.MatchedWords) > 0
	return verdict
}

// Tokenize lower-cases text, strips diacritics and splits on anything that is
// not a letter or digit.
func Tokenize(text string) []string {
	// transform chains hold state and are not safe to share between goroutines
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lowered := strings.ToLower(text)
	folded, _, err := transform.String(fold, lowered)
	if err != nil {
		folded = lowered
	}
	return strings.Fields(nonTokenChars.ReplaceAllString(folded, " "))
}

func containsRun(tokens, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, part := range phrase {
			if tokens[i+j] != part {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
