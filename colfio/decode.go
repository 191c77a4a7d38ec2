package colfio

import (
	"errors"

	"github.com/kokes/colf/bitmap"
	"github.com/kokes/colf/schema"
	"github.com/kokes/colf/value"
)

// decodeColumn splits payload into its null bitmap and encoded-values
// region, then decodes rowCount values in row order (spec.md §4.5 steps
// 6-7). When lenient is false (the default), running out of encoded bytes
// before rowCount non-null values have been produced is DecodeTruncated;
// when true, the remaining non-null positions decode as absent instead of
// failing the whole column.
func decodeColumn(col schema.Column, payload []byte, rowCount int, lenient bool) ([]value.Value, error) {
	byteLen := (rowCount + 7) / 8
	if len(payload) < byteLen {
		// A short bitmap leaves every row's null status unknown, not just the
		// tail of the encoded-values region, so lenient mode has nothing
		// sound to fall back to here and this stays a hard error.
		return nil, value.ErrDecodeTruncated
	}
	nulls := bitmap.NewBitmapFromBytes(payload[:byteLen], rowCount)
	encoded := payload[byteLen:]

	vals := make([]value.Value, rowCount)
	pos := 0
	truncated := false
	for i := 0; i < rowCount; i++ {
		if nulls.Get(i) {
			vals[i] = value.Null(col.Type)
			continue
		}
		if truncated {
			if !lenient {
				return nil, value.ErrDecodeTruncated
			}
			vals[i] = value.Null(col.Type)
			continue
		}
		v, n, err := value.Decode(col.Type, encoded[pos:])
		if err != nil {
			if lenient && isTruncation(err) {
				truncated = true
				vals[i] = value.Null(col.Type)
				continue
			}
			return nil, err
		}
		vals[i] = v
		pos += n
	}
	return vals, nil
}

func isTruncation(err error) bool {
	return errors.Is(err, value.ErrDecodeTruncated)
}
