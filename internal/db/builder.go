package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building a hash-backed FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds NUMERIC fields.
func (b *IndexBuilder) Numeric(names ...string) *IndexBuilder {
	for _, n := range names {
		b.def.Fields = append(b.def.Fields, IndexField{Name: n, Type: IndexFieldNumeric})
	}
	return b
}

// Tag adds a TAG field. An empty separator keeps the server default.
func (b *IndexBuilder) Tag(name, separator string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldTag, TagSeparator: separator})
	return b
}

// Text adds TEXT fields.
func (b *IndexBuilder) Text(names ...string) *IndexBuilder {
	for _, n := range names {
		b.def.Fields = append(b.def.Fields, IndexField{Name: n, Type: IndexFieldText})
	}
	return b
}

// Vector adds the VECTOR field.
func (b *IndexBuilder) Vector(name string, opts VectorOptions) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldVector, Vector: opts})
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldText:
			parts = append(parts, "TEXT")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.Vector.Algorithm))
		}
	}
	return strings.Join(parts, " ")
}
