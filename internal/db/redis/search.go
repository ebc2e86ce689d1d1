package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
)

const (
	defaultVectorField = "embedding"
	scoreField         = "__vector_score"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH. Cosine
// distances are converted to similarities clamped to [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	vectorField := q.VectorField
	if vectorField == "" {
		vectorField = defaultVectorField
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", q.K, vectorField, scoreField)
	queryStr := "*=>" + knnPart
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		fields := append([]string{scoreField}, q.ReturnFields...)
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}

	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)}
		if scoreStr, ok := entry.Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = min(1, max(0, 1.0-d))
			}
			delete(entry.Fields, scoreField)
		}
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Must())+len(expr.MustNot()))
	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}
	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return fmt.Sprintf("@%s:{%s}", cond.Key(), tagEscaper.Replace(cond.Match()))
}

// buildNumericFilter renders an inclusive range; open bounds become infinities.
func buildNumericFilter(key string, r filter.Range) string {
	lo, hi := "-inf", "+inf"
	if r.Min() != nil {
		lo = strconv.FormatFloat(*r.Min(), 'g', -1, 64)
	}
	if r.Max() != nil {
		hi = strconv.FormatFloat(*r.Max(), 'g', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", key, lo, hi)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
