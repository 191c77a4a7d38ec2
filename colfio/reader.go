package colfio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kokes/colf/colftype"
	"github.com/kokes/colf/compress"
	"github.com/kokes/colf/schema"
	"github.com/kokes/colf/value"
)

// Reader opens a CFF file as a random-access, read-only handle. It is not
// safe for concurrent use by multiple goroutines, because every operation
// seeks the underlying handle (spec.md §5) — open one Reader per caller.
//
// Grounded on the teacher's stripe-offset random access
// (database.Stripe.Offsets, src/database/dataset.go): this package's
// column index plays the same "jump straight to one column's bytes" role,
// generalized to the fixed 24-byte on-disk record spec.md §6 defines
// instead of a JSON-serialized []uint32.
type Reader struct {
	rs     io.ReadSeeker
	closer io.Closer

	// Lenient switches DecodeTruncated from an error into the tolerant
	// recovery spec.md §4.5 step 7 allows: when the encoded-values region
	// runs out early, remaining non-null positions decode as absent
	// instead of failing the whole read. Default false (strict), per
	// spec.md's recommendation.
	Lenient bool
}

// Open opens path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// NewReader wraps an already-open seekable source. Use this (with a
// counting/instrumented io.ReadSeeker) to verify the random-access property
// that ReadColumn touches no other column's data region.
func NewReader(rs io.ReadSeeker) *Reader {
	return &Reader{rs: rs}
}

// Close releases the underlying file handle, if Reader owns one (i.e. it
// was obtained via Open rather than NewReader).
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

type parsedFile struct {
	codec    compress.Codec
	rowCount int
	entries  []IndexEntry
	schema   *schema.Schema
}

// parse re-reads the header, index and per-column metadata from scratch —
// every public operation is independent and re-parses this state (spec.md
// §4.5: "each operation is independent and re-parses header + index +
// schema"). Only the per-column *data* region is read selectively,
// depending on the operation (spec.md's random-access property concerns
// data bytes, not this bookkeeping).
func (r *Reader) parse() (*parsedFile, error) {
	version, codec, columnCount, rowCount, err := r.parseHeader()
	if err != nil {
		return nil, err
	}
	entries, err := r.parseIndex(columnCount)
	if err != nil {
		return nil, err
	}
	cols, err := r.parseMetadata(entries)
	if err != nil {
		return nil, err
	}
	_ = version
	return &parsedFile{
		codec:    codec,
		rowCount: int(rowCount),
		entries:  entries,
		schema:   schema.NewUnchecked(cols, codec),
	}, nil
}

func (r *Reader) parseHeader() (version byte, codec compress.Codec, columnCount, rowCount uint32, err error) {
	if _, err = r.rs.Seek(0, io.SeekStart); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	magicAndVersion := make([]byte, 5)
	if _, err = io.ReadFull(r.rs, magicAndVersion); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if string(magicAndVersion[:4]) != Magic {
		return 0, 0, 0, 0, fmt.Errorf("%w: got %q", ErrInvalidMagic, magicAndVersion[:4])
	}
	version = magicAndVersion[4]

	switch version {
	case 1:
		codec = compress.None
		rest := make([]byte, headerSizeV1-5)
		if _, err = io.ReadFull(r.rs, rest); err != nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
		columnCount = readUint32(rest[0:4])
		rowCount = readUint32(rest[4:8])
	case 2:
		rest := make([]byte, headerSizeV2-5)
		if _, err = io.ReadFull(r.rs, rest); err != nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
		codec, err = compress.FromByte(rest[0])
		if err != nil {
			return 0, 0, 0, 0, err
		}
		columnCount = readUint32(rest[1:5])
		rowCount = readUint32(rest[5:9])
	default:
		return 0, 0, 0, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	return version, codec, columnCount, rowCount, nil
}

func (r *Reader) parseIndex(columnCount uint32) ([]IndexEntry, error) {
	buf := make([]byte, int(columnCount)*indexEntrySize)
	if _, err := io.ReadFull(r.rs, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	entries := make([]IndexEntry, columnCount)
	for j := range entries {
		b := buf[j*indexEntrySize : (j+1)*indexEntrySize]
		entries[j] = IndexEntry{
			MetadataOffset: readUint64(b[0:8]),
			DataOffset:     readUint64(b[8:16]),
			DataSize:       readUint32(b[16:20]),
			Reserved:       readUint32(b[20:24]),
		}
	}
	return entries, nil
}

func (r *Reader) parseMetadata(entries []IndexEntry) ([]schema.Column, error) {
	cols := make([]schema.Column, len(entries))
	for j, e := range entries {
		if _, err := r.rs.Seek(int64(e.MetadataOffset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		var lenBuf [4]byte
		if _, err := io.ReadFull(r.rs, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		nameLen := readUint32(lenBuf[:])
		rest := make([]byte, int(nameLen)+2)
		if _, err := io.ReadFull(r.rs, rest); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		name := string(rest[:nameLen])
		typ, err := colftype.FromCode(rest[nameLen])
		if err != nil {
			return nil, err
		}
		nullable := rest[nameLen+1] != 0
		cols[j] = schema.Column{Name: name, Type: typ, Nullable: nullable}
	}
	return cols, nil
}

// columnPayload reads and, if necessary, decompresses one column's data
// block, without touching any other column's bytes. When lenient is set, a
// file truncated mid-payload (fewer bytes on disk than the size prefix
// promises) yields whatever bytes are actually present instead of an I/O
// error, so decodeColumn's own tolerant-recovery path gets a chance to run
// on a short payload rather than the read failing first.
func (r *Reader) columnPayload(e IndexEntry, codec compress.Codec, lenient bool) ([]byte, error) {
	if _, err := r.rs.Seek(int64(e.DataOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r.rs, sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	size := readUint32(sizeBuf[:])
	raw := make([]byte, size)
	n, err := io.ReadFull(r.rs, raw)
	if err != nil {
		if lenient && errors.Is(err, io.ErrUnexpectedEOF) {
			raw = raw[:n]
		} else {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return compress.Decompress(codec, raw)
}

// ColumnNames returns the schema's column names in file order.
func (r *Reader) ColumnNames() ([]string, error) {
	pf, err := r.parse()
	if err != nil {
		return nil, err
	}
	return pf.schema.Names(), nil
}

// RowCount returns the number of rows in the file.
func (r *Reader) RowCount() (int, error) {
	pf, err := r.parse()
	if err != nil {
		return 0, err
	}
	return pf.rowCount, nil
}

// Schema returns the file's schema.
func (r *Reader) Schema() (*schema.Schema, error) {
	pf, err := r.parse()
	if err != nil {
		return nil, err
	}
	return pf.schema, nil
}

// ReadColumn decodes and returns one column's values, in row order. It
// reads the header, the index and every column's metadata block (to find
// the column by name), and the data block of the requested column only;
// other columns' data blocks are not read.
func (r *Reader) ReadColumn(name string) ([]value.Value, error) {
	pf, err := r.parse()
	if err != nil {
		return nil, err
	}
	idx, ok := pf.schema.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("colfio: no such column %q", name)
	}
	payload, err := r.columnPayload(pf.entries[idx], pf.codec, r.Lenient)
	if err != nil {
		return nil, err
	}
	return decodeColumn(pf.schema.Columns[idx], payload, pf.rowCount, r.Lenient)
}

// ReadAllColumns decodes every column and returns rowCount fully populated
// rows. Columns are decoded into plain Go slices — never a linked or
// persistent structure (spec.md §4.5, §9 Design Note) — so transposing
// decoded columns into rows is O(rows × columns), not O(rows × columns²).
func (r *Reader) ReadAllColumns() ([]value.Row, error) {
	pf, err := r.parse()
	if err != nil {
		return nil, err
	}

	decoded := make([][]value.Value, len(pf.schema.Columns))
	for j, col := range pf.schema.Columns {
		payload, err := r.columnPayload(pf.entries[j], pf.codec, r.Lenient)
		if err != nil {
			return nil, err
		}
		vals, err := decodeColumn(col, payload, pf.rowCount, r.Lenient)
		if err != nil {
			return nil, err
		}
		decoded[j] = vals
	}

	rows := make([]value.Row, pf.rowCount)
	for i := 0; i < pf.rowCount; i++ {
		row := make(value.Row, len(pf.schema.Columns))
		for j, col := range pf.schema.Columns {
			row[col.Name] = decoded[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func readUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
