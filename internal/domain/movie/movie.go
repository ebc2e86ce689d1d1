// Package movie defines the catalog record used to hydrate ranking candidates.
package movie

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Well-known catalog field names. Anything else lands in Extra.
const (
	FieldTitle       = "title"
	FieldOverview    = "overview"
	FieldGenres      = "genres"
	FieldYear        = "year"
	FieldReleaseDate = "release_date"
	FieldPopularity  = "popularity"
	FieldRating      = "vote_average"
	FieldVoteCount   = "vote_count"
)

// Movie is a catalog entry. Year 0 means unknown.
type Movie struct {
	ID         string
	Title      string
	Overview   string
	Genres     []string
	Year       int
	Popularity float64
	Rating     float64
	VoteCount  int
	Extra      map[string]string
}

// HasYear reports whether the release year is known.
func (m Movie) HasYear() bool { return m.Year > 0 }

// Clone returns a deep copy.
func (m Movie) Clone() Movie {
	m.Genres = slices.Clone(m.Genres)
	m.Extra = maps.Clone(m.Extra)
	return m
}

// FromFields parses a flat hash (as stored in the catalog and returned by the
// ANN index) into a Movie. Malformed numeric fields are left at zero.
func FromFields(id string, fields map[string]string) Movie {
	m := Movie{ID: id}
	for k, v := range fields {
		switch k {
		case FieldTitle:
			m.Title = v
		case FieldOverview:
			m.Overview = v
		case FieldGenres:
			m.Genres = ParseGenres(v)
		case FieldYear:
			if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				m.Year = y
			}
		case FieldReleaseDate:
			if m.Year == 0 && len(v) >= 4 {
				if y, err := strconv.Atoi(v[:4]); err == nil {
					m.Year = y
				}
			}
		case FieldPopularity:
			m.Popularity = parseFloat(v)
		case FieldRating:
			m.Rating = parseFloat(v)
		case FieldVoteCount:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				m.VoteCount = n
			}
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return m
}

// Fields flattens m back into hash fields.
func (m Movie) Fields() map[string]string {
	out := make(map[string]string, 8+len(m.Extra))
	maps.Copy(out, m.Extra)
	if m.Title != "" {
		out[FieldTitle] = m.Title
	}
	if m.Overview != "" {
		out[FieldOverview] = m.Overview
	}
	if len(m.Genres) > 0 {
		out[FieldGenres] = strings.Join(m.Genres, ",")
	}
	if m.HasYear() {
		out[FieldYear] = strconv.Itoa(m.Year)
	}
	out[FieldPopularity] = strconv.FormatFloat(m.Popularity, 'f', -1, 64)
	out[FieldRating] = strconv.FormatFloat(m.Rating, 'f', -1, 64)
	out[FieldVoteCount] = strconv.Itoa(m.VoteCount)
	return out
}

// Merge fills empty fields of m from other. Values already set on m win.
func (m Movie) Merge(other Movie) Movie {
	out := m.Clone()
	if out.Title == "" {
		out.Title = other.Title
	}
	if out.Overview == "" {
		out.Overview = other.Overview
	}
	if len(out.Genres) == 0 {
		out.Genres = slices.Clone(other.Genres)
	}
	if !out.HasYear() {
		out.Year = other.Year
	}
	if out.Popularity == 0 {
		out.Popularity = other.Popularity
	}
	if out.Rating == 0 {
		out.Rating = other.Rating
	}
	if out.VoteCount == 0 {
		out.VoteCount = other.VoteCount
	}
	for k, v := range other.Extra {
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		if _, ok := out.Extra[k]; !ok {
			out.Extra[k] = v
		}
	}
	return out
}

// ParseGenres splits a genre list separated by commas or pipes.
func ParseGenres(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
