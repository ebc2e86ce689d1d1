package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain/text"
)

// Key namespaces inside the cache.
const (
	PrefixSearch    = "sr:"
	PrefixEmbedding = "qe:"
	PrefixMovie     = "md:"
)

// SearchKey derives the result cache key from the normalized query and the
// filters sorted by key, so equal requests map to equal keys regardless of
// map iteration order or query casing and spacing.
func SearchKey(query string, filters map[string]string) string {
	var b strings.Builder
	for i, k := range slices.Sorted(maps.Keys(filters)) {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(strings.ToLower(k))
		b.WriteByte('=')
		b.WriteString(text.Normalize(filters[k]))
	}
	return PrefixSearch + digest(text.Normalize(query)) + ":" + digest(b.String())[:16]
}

// EmbeddingKey derives the query-embedding cache key. The text is hashed as
// given: embedding models are case sensitive.
func EmbeddingKey(model, input string) string {
	return PrefixEmbedding + digest(model+"\x00"+input)
}

// MovieKey derives the movie-details cache key.
func MovieKey(id string) string {
	return PrefixMovie + id
}

func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
