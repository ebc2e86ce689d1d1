package db

import (
	"errors"
	"fmt"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// ParseVectorAlgorithm maps a config value to an algorithm. Empty means HNSW.
func ParseVectorAlgorithm(s string) (VectorAlgorithm, error) {
	switch VectorAlgorithm(s) {
	case "", VectorHNSW:
		return VectorHNSW, nil
	case VectorFlat:
		return VectorFlat, nil
	default:
		return "", fmt.Errorf("unknown vector algorithm %q", s)
	}
}

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

// VectorOptions holds the VECTOR attributes of an index field.
type VectorOptions struct {
	Algorithm VectorAlgorithm
	Dim       int
	Distance  DistanceMetric
	// HNSW only; zero keeps the server default
	M              int
	EFConstruction int
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name         string
	Type         IndexFieldType
	TagSeparator string
	Vector       VectorOptions
}

// IndexDefinition is a hash-backed FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool, len(idx.Fields))
	vectors := 0
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = true

		if f.Type == IndexFieldVector {
			vectors++
			if f.Vector.Dim <= 0 {
				return fmt.Errorf("vector field %s requires positive DIM", f.Name)
			}
		}
	}
	if vectors > 1 {
		return errors.New("at most one vector field is supported")
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
