// Package filter models the ANN pre-filter: tag matches and numeric ranges
// combined with must / must-not semantics.
package filter

import "fmt"

// MaxConditions caps each condition group.
const MaxConditions = 16

// Expression is a conjunction of required and excluded conditions.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditions)
	}
	if len(mustNot) > MaxConditions {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditions)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Must returns the required conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the excluded conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 && len(e.mustNot) == 0 }

// Condition is either a tag match or a numeric range on one field.
type Condition struct {
	key   string
	match string
	rng   *Range
}

// NewMatch creates a tag match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: value}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rng: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the tag value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range, nil for tag matches.
func (c Condition) Range() *Range { return c.rng }

// IsMatch reports whether c is a tag match.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether c is a numeric range.
func (c Condition) IsRange() bool { return c.rng != nil }

// Range is an inclusive numeric interval; a nil bound is open.
type Range struct {
	min *float64
	max *float64
}

// NewRangeFilter creates a Range. At least one bound is required and min must not exceed max.
func NewRangeFilter(lo, hi *float64) (Range, error) {
	if lo == nil && hi == nil {
		return Range{}, fmt.Errorf("at least one range bound is required")
	}
	if lo != nil && hi != nil && *lo > *hi {
		return Range{}, fmt.Errorf("range lower bound %g exceeds upper bound %g", *lo, *hi)
	}
	return Range{min: lo, max: hi}, nil
}

// Min returns the inclusive lower bound.
func (r Range) Min() *float64 { return r.min }

// Max returns the inclusive upper bound.
func (r Range) Max() *float64 { return r.max }
