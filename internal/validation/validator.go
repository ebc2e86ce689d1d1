// Package validation wraps go-playground/validator with field names taken
// from the json/yaml tags, so errors point at what the caller actually wrote.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason())
}

// Reason renders the failed rule as a short phrase.
func (e FieldError) Reason() string {
	switch e.Tag {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param
	case "max", "lte":
		return "must be at most " + e.Param
	case "gt":
		return "must be greater than " + e.Param
	case "lt":
		return "must be less than " + e.Param
	case "oneof":
		return "must be one of [" + e.Param + "]"
	case "dive":
		return "has an invalid element"
	default:
		if e.Param != "" {
			return fmt.Sprintf("failed %s=%s", e.Tag, e.Param)
		}
		return "failed " + e.Tag
	}
}

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(tagName)
	})
	return validate
}

// Struct validates s and returns the failed rules, or nil.
func Struct(s any) []FieldError {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Tag: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fieldPath(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "Config.http.port" -> "http.port".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
