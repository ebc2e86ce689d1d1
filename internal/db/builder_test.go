package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_MovieSchema(t *testing.T) {
	idx, err := NewIndex("cinerank:movies:idx").
		Prefix("cinerank:movie:").
		Text("title").
		Tag("genres", ",").
		Tag("original_language", "").
		Numeric("year", "vote_average", "popularity").
		Vector("embedding", VectorOptions{Algorithm: VectorHNSW, Dim: 1536, Distance: DistanceCosine, M: 16}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idx.Fields) != 7 {
		t.Fatalf("fields count = %d, want 7", len(idx.Fields))
	}
	if f := idx.Fields[1]; f.Type != IndexFieldTag || f.TagSeparator != "," {
		t.Errorf("genres field = %+v", f)
	}
	if f := idx.Fields[6]; f.Vector.Dim != 1536 || f.Vector.M != 16 {
		t.Errorf("vector field = %+v", f)
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"invalid name", NewIndex("bad name").Numeric("year")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Numeric("year", "year")},
		{"zero dim", NewIndex("idx").Vector("v", VectorOptions{Algorithm: VectorFlat})},
		{"two vectors", NewIndex("idx").
			Vector("a", VectorOptions{Dim: 4}).
			Vector("b", VectorOptions{Dim: 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIndexBuilder_BuildCopies(t *testing.T) {
	b := NewIndex("idx").Numeric("year")
	first, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	b.Numeric("rating")
	if len(first.Fields) != 1 {
		t.Error("later builder calls must not mutate a built definition")
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, _ := NewIndex("idx").
		Prefix("m:").
		Tag("genres", ",").
		Vector("embedding", VectorOptions{Algorithm: VectorFlat, Dim: 4}).
		Build()

	s := idx.String()
	for _, want := range []string{"FT.CREATE idx ON HASH", "PREFIX m:", "genres TAG", "embedding VECTOR FLAT"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestParseVectorAlgorithm(t *testing.T) {
	if a, err := ParseVectorAlgorithm(""); err != nil || a != VectorHNSW {
		t.Errorf("empty: %v %v", a, err)
	}
	if a, err := ParseVectorAlgorithm("FLAT"); err != nil || a != VectorFlat {
		t.Errorf("FLAT: %v %v", a, err)
	}
	if _, err := ParseVectorAlgorithm("IVF"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"idx", "cinerank:movies:idx", "a-b_c"}
	invalid := []string{"", "has space", "semi;colon"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
