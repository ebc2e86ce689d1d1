package request

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum accepted query length in characters.
	MaxQueryLength = 500
	DefaultLimit   = 10
	MaxLimit       = 50
)

// Filter keys accepted on a search request.
const (
	FilterGenre        = "genre"
	FilterExcludeGenre = "exclude_genre"
	FilterYearFrom     = "year_from"
	FilterYearTo       = "year_to"
	FilterMinRating    = "min_rating"
	FilterLanguage     = "language"
)

// FieldLanguage is the catalog field the language filter applies to.
const FieldLanguage = "original_language"

var filterKeys = []string{
	FilterGenre, FilterExcludeGenre, FilterYearFrom, FilterYearTo, FilterMinRating, FilterLanguage,
}

// UserContext carries optional personalization preferences.
type UserContext struct {
	PreferredGenres []string
	YearFrom        int
	YearTo          int
	MinRating       float64
}

// IsEmpty reports whether no preference is set.
func (u *UserContext) IsEmpty() bool {
	return u == nil || (len(u.PreferredGenres) == 0 && u.YearFrom == 0 && u.YearTo == 0 && u.MinRating == 0)
}

// Request is a validated search request.
type Request struct {
	query   string
	filters map[string]string
	expr    filter.Expression
	limit   int
	user    *UserContext
}

// New validates and normalizes search parameters. Every rejection is a
// *domain.InputError with suggestions.
func New(query string, filters map[string]string, limit int, user *UserContext) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, domain.NewInputError("query", "must not be empty",
			"describe what you want to watch, e.g. \"scary movies\"")
	}
	if len([]rune(query)) > MaxQueryLength {
		return Request{}, domain.NewInputError("query",
			"too long (max "+strconv.Itoa(MaxQueryLength)+" characters)",
			"shorten the query to its key terms")
	}

	if limit < 0 {
		return Request{}, domain.NewInputError("limit", "must not be negative")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	expr, err := buildExpression(filters)
	if err != nil {
		return Request{}, err
	}

	if err := validateUser(user); err != nil {
		return Request{}, err
	}

	return Request{
		query:   query,
		filters: maps.Clone(filters),
		expr:    expr,
		limit:   limit,
		user:    user,
	}, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Filters returns a copy of the raw filter map (the cache key input).
func (r *Request) Filters() map[string]string { return maps.Clone(r.filters) }

// Expression returns the ANN pre-filter.
func (r *Request) Expression() filter.Expression { return r.expr }

// Limit returns the maximum number of results to return.
func (r *Request) Limit() int { return r.limit }

// User returns the personalization context, nil when absent.
func (r *Request) User() *UserContext { return r.user }

func buildExpression(filters map[string]string) (filter.Expression, error) {
	if len(filters) == 0 {
		return filter.Expression{}, nil
	}

	var must, mustNot []filter.Condition
	var yearFrom, yearTo *float64

	// sorted for a stable condition order
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		v := strings.TrimSpace(filters[k])
		if v == "" {
			return filter.Expression{}, domain.NewInputError("filters."+k, "value must not be empty")
		}
		switch k {
		case FilterGenre, FilterExcludeGenre, FilterLanguage:
			field := movie.FieldGenres
			if k == FilterLanguage {
				field = FieldLanguage
			}
			c, err := filter.NewMatch(field, v)
			if err != nil {
				return filter.Expression{}, domain.NewInputError("filters."+k, err.Error())
			}
			if k == FilterExcludeGenre {
				mustNot = append(mustNot, c)
			} else {
				must = append(must, c)
			}
		case FilterYearFrom, FilterYearTo:
			y, err := strconv.Atoi(v)
			if err != nil || y < 1870 || y > 2200 {
				return filter.Expression{}, domain.NewInputError("filters."+k, "must be a four digit year",
					"e.g. "+k+"=1990")
			}
			f := float64(y)
			if k == FilterYearFrom {
				yearFrom = &f
			} else {
				yearTo = &f
			}
		case FilterMinRating:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 10 {
				return filter.Expression{}, domain.NewInputError("filters."+k, "must be a number between 0 and 10")
			}
			r, _ := filter.NewRangeFilter(&f, nil)
			c, _ := filter.NewRange(movie.FieldRating, r)
			must = append(must, c)
		default:
			return filter.Expression{}, domain.NewInputError("filters."+k, "unsupported filter",
				"supported filters: "+strings.Join(filterKeys, ", "))
		}
	}

	if yearFrom != nil || yearTo != nil {
		r, err := filter.NewRangeFilter(yearFrom, yearTo)
		if err != nil {
			return filter.Expression{}, domain.NewInputError("filters.year", err.Error())
		}
		c, _ := filter.NewRange(movie.FieldYear, r)
		must = append(must, c)
	}

	expr, err := filter.NewExpression(must, mustNot)
	if err != nil {
		return filter.Expression{}, domain.NewInputError("filters", err.Error())
	}
	return expr, nil
}

func validateUser(u *UserContext) error {
	if u == nil {
		return nil
	}
	if u.YearFrom != 0 && u.YearTo != 0 && u.YearFrom > u.YearTo {
		return domain.NewInputError("user_context.year_range", "year_from must not exceed year_to")
	}
	if u.MinRating < 0 || u.MinRating > 10 {
		return domain.NewInputError("user_context.min_rating", "must be between 0 and 10")
	}
	return nil
}
