// Package compress implements the pluggable, one-byte-tagged compression
// codec referenced by a schema's compression field and each file's header.
package compress

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Codec identifies a compression scheme by its stable on-disk tag.
type Codec uint8

// The two codecs spec.md §4.6 requires.
const (
	None   Codec = 0
	Snappy Codec = 1
)

// ErrUnknownCodec is returned when a header or schema names a compression
// tag outside the closed set above.
var ErrUnknownCodec = errors.New("compress: unknown compression codec")

// FromByte maps an on-disk codec tag to a Codec.
func FromByte(b byte) (Codec, error) {
	switch Codec(b) {
	case None, Snappy:
		return Codec(b), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCodec, b)
	}
}

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(c))
	}
}

// Compress applies codec to data. None is the identity transform; Snappy
// uses the block API (rather than the streaming reader/writer the teacher
// reaches for when interleaving compression with a CSV read) because a
// column's payload is already fully buffered before this call.
func Compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case None:
		return data, nil
	case Snappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

// Decompress is the inverse of Compress.
func Decompress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case None:
		return data, nil
	case Snappy:
		return snappy.Decode(nil, data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}
