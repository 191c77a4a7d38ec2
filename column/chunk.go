// Package column builds the write-side ColumnChunk: it accumulates one
// column's values row by row, producing the null bitmap plus concatenated
// encoded non-null values that the file writer frames and emits (spec.md
// §4.3). Grounded on the teacher's per-Dtype ChunkInts/ChunkStrings/
// ChunkBools (src/column/chunk.go), narrowed to the spec's closed type set
// and re-targeted from AddValue(string) (CSV cell text) to
// AddValue(value.Value) (typed row input).
package column

import (
	"fmt"

	"github.com/kokes/colf/bitmap"
	"github.com/kokes/colf/schema"
	"github.com/kokes/colf/value"
)

// Chunk accumulates one column's values across a row stream, in row order.
type Chunk struct {
	col      schema.Column
	nulls    *bitmap.Bitmap
	encoded  []byte
	rowCount int
}

// New starts an empty Chunk for col.
func New(col schema.Column) *Chunk {
	return &Chunk{col: col, nulls: bitmap.NewBitmap(0)}
}

// AddValue appends one row's value for this column.
//
// An absent value supplied for a non-nullable column is unspecified
// behavior per spec.md §4.4; this implementation treats it as null rather
// than rejecting it — the bitmap is written unconditionally regardless of
// nullability (spec.md §4.2), so there is always a slot to record the
// absence in, and silently tolerating it keeps Write a single
// validate-then-emit pass instead of a second validation pass over rows.
func (c *Chunk) AddValue(v value.Value) error {
	idx := c.rowCount
	c.nulls.Ensure(idx + 1)
	if !v.Present {
		c.nulls.Set(idx, true)
		c.rowCount++
		return nil
	}
	if v.Type != c.col.Type {
		return fmt.Errorf("%w: column %q wants %v, got %v", value.ErrTypeMismatch, c.col.Name, c.col.Type, v.Type)
	}
	var err error
	c.encoded, err = value.Encode(c.encoded, v)
	if err != nil {
		return err
	}
	c.rowCount++
	return nil
}

// RowCount returns the number of values added so far.
func (c *Chunk) RowCount() int {
	return c.rowCount
}

// Payload returns the uncompressed column payload: the null bitmap bytes
// followed by the concatenation of encoded non-null values, in row order
// (spec.md §4.3/§6). Compression, if any, is applied by the caller (the
// file writer), since the payload of every column shares one schema-wide
// compression tag.
func (c *Chunk) Payload() []byte {
	buf := make([]byte, 0, c.nulls.ByteLen()+len(c.encoded))
	buf = append(buf, c.nulls.Bytes()...)
	buf = append(buf, c.encoded...)
	return buf
}
