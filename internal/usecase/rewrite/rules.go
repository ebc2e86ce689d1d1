package rewrite

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// category is a genre with the terms people use to ask for it.
type category struct {
	name    string
	related []string
}

// categories are checked in order; the first match wins.
var categories = []category{
	{"action", []string{"thriller", "adventure", "exciting", "intense"}},
	{"comedy", []string{"funny", "humorous", "laugh", "amusing"}},
	{"horror", []string{"scary", "frightening", "terror", "suspense"}},
	{"romance", []string{"love", "romantic", "relationship", "couple"}},
	{"sci-fi", []string{"science fiction", "futuristic", "space", "technology"}},
	{"drama", []string{"emotional", "serious", "character-driven", "story"}},
}

var simplifications = []struct{ from, to string }{
	{"very good", "good"},
	{"really great", "great"},
	{"highly recommended", "recommended"},
	{"movies like", "similar to"},
	{"films similar to", "similar to"},
	{"something like", "similar to"},
}

// searchVerbs are stripped as whole words by intent normalization.
var searchVerbs = [][]string{
	{"search", "for"},
	{"looking", "for"},
	{"i", "want"},
	{"show", "me"},
	{"find"},
}

// expand appends one related term when q names a category, or the category
// name when q only uses one of its related terms. q must be normalized.
func expand(q string) string {
	for _, c := range categories {
		if text.ContainsPhrase(q, c.name) {
			for _, term := range c.related {
				if !text.ContainsPhrase(q, term) {
					return q + " " + term
				}
			}
			return q
		}
		for _, term := range c.related {
			if text.ContainsPhrase(q, term) {
				return q + " " + c.name
			}
		}
	}
	return q
}

// simplify collapses intensifier phrases, normalizes "movies like" style
// phrasing and drops repeated words. q must be normalized.
func simplify(q string) string {
	padded := " " + q + " "
	for _, s := range simplifications {
		from, to := " "+s.from+" ", " "+s.to+" "
		for strings.Contains(padded, from) {
			padded = strings.ReplaceAll(padded, from, to)
		}
	}

	words := strings.Fields(padded)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// normalizeIntent strips search verbs and rewrites "X like Y" to
// "similar to Y". Applying it to its own output is a no-op. q must be
// normalized. An input that is nothing but verbs is returned unchanged.
func normalizeIntent(q string) string {
	words := strings.Fields(q)

	for {
		stripped := stripVerbs(words)
		if len(stripped) == len(words) {
			break
		}
		words = stripped
	}
	if len(words) == 0 {
		return q
	}

	if last := lastIndex(words, "like"); last >= 0 && last < len(words)-1 {
		subject := words[last+1:]
		words = append([]string{"similar", "to"}, subject...)
	}
	return strings.Join(words, " ")
}

func stripVerbs(words []string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		if n := verbAt(words, i); n > 0 {
			i += n
			continue
		}
		out = append(out, words[i])
		i++
	}
	return out
}

func verbAt(words []string, i int) int {
	for _, verb := range searchVerbs {
		if i+len(verb) > len(words) {
			continue
		}
		if slices.Equal(words[i:i+len(verb)], verb) {
			return len(verb)
		}
	}
	return 0
}

func lastIndex(words []string, w string) int {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] == w {
			return i
		}
	}
	return -1
}

// Pattern buckets a query for performance tracking.
func Pattern(query string) string {
	q := text.Normalize(query)
	n := len(strings.Fields(q))
	switch {
	case n <= 2:
		return PatternShort
	case n >= 6:
		return PatternLong
	}
	for _, c := range categories {
		if text.ContainsPhrase(q, c.name) {
			return PatternGenre
		}
	}
	for _, w := range []string{"like", "similar", "recommend"} {
		if text.ContainsPhrase(q, w) {
			return PatternRecommendation
		}
	}
	return PatternGeneral
}
