// Package schema defines a CFF file's column layout: an ordered, uniquely
// named list of typed columns plus a file-wide compression tag.
package schema

import (
	"errors"
	"fmt"

	"github.com/kokes/colf/colftype"
	"github.com/kokes/colf/compress"
)

// ErrSchemaInvalid covers every construction-time schema violation: an
// empty schema, a duplicate column name, an empty column name, or a column
// type outside the closed set.
var ErrSchemaInvalid = errors.New("schema: invalid schema")

// Column describes one column: its name, value type and nullability.
type Column struct {
	Name     string
	Type     colftype.Type
	Nullable bool
}

// Schema is an ordered sequence of Columns plus the file's compression tag.
type Schema struct {
	Columns     []Column
	Compression compress.Codec

	byName map[string]int
}

// New validates and constructs a Schema. It rejects an empty column list,
// an empty column name, a duplicate column name, or a column naming a type
// outside the closed set in package colftype.
func New(columns []Column, codec compress.Codec) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: schema must have at least one column", ErrSchemaInvalid)
	}
	byName := make(map[string]int, len(columns))
	for j, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty name", ErrSchemaInvalid, j)
		}
		if !col.Type.Valid() {
			return nil, fmt.Errorf("%w: column %q has an invalid type", ErrSchemaInvalid, col.Name)
		}
		if _, ok := byName[col.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrSchemaInvalid, col.Name)
		}
		byName[col.Name] = j
	}
	cp := make([]Column, len(columns))
	copy(cp, columns)
	return &Schema{Columns: cp, Compression: codec, byName: byName}, nil
}

// NewUnchecked builds a Schema without re-running the construction-time
// validation in New. It exists for the file reader (colfio), which parses a
// schema back out of a file that was only ever produced by a validated
// Write — paying the validation cost again on every read would be wasted
// work for a property the writer already guaranteed.
func NewUnchecked(columns []Column, codec compress.Codec) *Schema {
	byName := make(map[string]int, len(columns))
	for j, col := range columns {
		byName[col.Name] = j
	}
	return &Schema{Columns: columns, Compression: codec, byName: byName}
}

// ColumnIndex returns the position of name in Columns, and whether it was
// found at all — used to give O(1) lookups instead of a linear scan (spec.md
// §9 Design Note 3).
func (s *Schema) ColumnIndex(name string) (int, bool) {
	if s.byName == nil {
		for j, col := range s.Columns {
			if col.Name == name {
				return j, true
			}
		}
		return 0, false
	}
	idx, ok := s.byName[name]
	return idx, ok
}

// Names returns the column names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for j, col := range s.Columns {
		names[j] = col.Name
	}
	return names
}
