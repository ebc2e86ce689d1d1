// Package text holds the tokenization rules shared by the rewriter, scorer,
// ranker and evaluator. All functions are pure.
package text

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "will": {}, "with": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "you": {}, "your": {}, "want": {}, "like": {},
	"show": {}, "find": {}, "some": {}, "about": {}, "this": {}, "what": {}, "who": {},
}

// Normalize lowercases s and collapses runs of whitespace into single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokens splits s into lowercase word tokens. Hyphens and apostrophes stay
// inside a token so "sci-fi" and "director's" survive.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// IsStopWord reports whether tok carries no search meaning.
func IsStopWord(tok string) bool {
	_, ok := stopWords[tok]
	return ok
}

// Keywords returns up to limit distinct non-stop-word tokens longer than two
// characters, in query order.
func Keywords(s string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range Tokens(s) {
		if len(t) <= 2 || IsStopWord(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ContainsPhrase reports whether phrase occurs in s on word boundaries.
// Both sides are compared lowercase.
func ContainsPhrase(s, phrase string) bool {
	hay := Tokens(s)
	needle := Tokens(phrase)
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
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

// Overlap returns |a ∩ b| / |a|, or 0 when a is empty.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(a))
}
