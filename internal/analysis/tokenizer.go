// Package analysis turns text into index terms.
//
// The same pipeline is used when indexing chunks and when parsing queries,
// so a chunk searched with its own text always matches itself.
package analysis

import (
	"strings"
	"unicode"
)

// stopwords is a small English stopword set.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "were": {}, "will": {}, "with": {},
	"what": {}, "when": {}, "which": {}, "who": {}, "how": {}, "do": {}, "does": {},
	"i": {}, "you": {}, "we": {}, "my": {}, "our": {}, "your": {},
}

// IsStopword reports whether the lowercase word is dropped during analysis.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// Tokenize lowercases text, splits it on runs of characters that are neither
// letters nor digits, drops stopwords and folds plurals.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if IsStopword(f) {
			continue
		}
		tokens = append(tokens, Stem(f))
	}
	return tokens
}

// TermFrequencies counts the analysed terms of text.
func TermFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		tf[tok]++
	}
	return tf
}

// Stem applies the Harman "S" stemmer, which only folds English plurals.
// It is conservative enough to never merge unrelated words.
func Stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ies") &&
		!strings.HasSuffix(word, "eies") && !strings.HasSuffix(word, "aies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "es") &&
		!strings.HasSuffix(word, "aes") && !strings.HasSuffix(word, "ees") && !strings.HasSuffix(word, "oes"):
		return word[:len(word)-1]
	case strings.HasSuffix(word, "s") &&
		!strings.HasSuffix(word, "us") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	}
	return word
}
