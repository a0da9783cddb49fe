package ml

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

// wordSplitRe splits on any run of non-alphanumeric characters.
var wordSplitRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Normalize lowercases text, splits it on word boundaries and reduces each
// token to its stem. It is pure and deterministic: identical input always
// yields an identical token sequence. Empty input yields an empty slice.
func Normalize(text string) []string {
	parts := wordSplitRe.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		stemmed := english.Stem(p, true)
		if stemmed == "" {
			// Keep the raw token when the stemmer has nothing to say.
			tokens = append(tokens, p)
			continue
		}
		tokens = append(tokens, stemmed)
	}
	return tokens
}

// tokenSet converts a token sequence into a presence set.
func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
