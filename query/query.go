package query

import (
	"github.com/kokes/colf/colfio"
	"github.com/kokes/colf/colftype"
	"github.com/kokes/colf/value"
)

// Query is a fluent builder over a colfio.Reader. Operations are recorded
// in call order; the file's rows are read once, at the first terminal call
// (Collect/Count/aggregations/Distinct/GroupByCount), and cached for any
// further terminal calls on the same builder value, mirroring the teacher's
// Result.Prune "materialize once, reorder/slice after" approach. The
// recorded filter/skip/limit operations are applied to the cached rows at
// every terminal call, so operations chained after a terminal call still
// take effect and observable behavior is the same whether or not caching
// happens.
//
// Filters are ANDed together and applied first, in the order chained, then
// Skip, then Limit — both positional over the filtered rows, preserving
// file order (spec.md §4.7: "positional, stable ordering"). Select is a
// final projection: it does not affect what Skip/Limit/aggregations see.
type Query struct {
	reader  *colfio.Reader
	filters []Predicate
	selectN []string
	skipN   int
	limitN  int
	hasSkip bool
	hasLim  bool

	rows   []value.Row
	loaded bool
	err    error
}

// New starts a query over r.
func New(r *colfio.Reader) *Query {
	return &Query{reader: r}
}

// Filter keeps rows where predicate evaluates true. Chained filters are
// ANDed together.
func (q *Query) Filter(p Predicate) *Query {
	q.filters = append(q.filters, p)
	return q
}

// Select restricts every output row to the given column names, silently
// dropping unknown names (spec.md §4.7).
func (q *Query) Select(names ...string) *Query {
	q.selectN = append(q.selectN, names...)
	return q
}

// Skip drops the first n rows of the filtered result, positionally.
func (q *Query) Skip(n int) *Query {
	q.skipN = n
	q.hasSkip = true
	return q
}

// Limit caps the filtered (and skipped) result at n rows.
func (q *Query) Limit(n int) *Query {
	q.limitN = n
	q.hasLim = true
	return q
}

// materialize loads all rows from the reader (once, cached for subsequent
// terminal calls on the same Query) and applies the current
// filter/skip/limit pipeline to them.
func (q *Query) materialize() ([]value.Row, error) {
	if !q.loaded {
		q.loaded = true
		q.rows, q.err = q.reader.ReadAllColumns()
	}
	if q.err != nil {
		return nil, q.err
	}

	pred := And(q.filters...)
	filtered := make([]value.Row, 0, len(q.rows))
	for _, row := range q.rows {
		if pred.Eval(row) {
			filtered = append(filtered, row)
		}
	}

	if q.hasSkip {
		if q.skipN >= len(filtered) {
			filtered = filtered[:0]
		} else {
			filtered = filtered[q.skipN:]
		}
	}
	if q.hasLim && q.limitN < len(filtered) {
		if q.limitN < 0 {
			filtered = filtered[:0]
		} else {
			filtered = filtered[:q.limitN]
		}
	}

	return filtered, nil
}

func project(row value.Row, names []string) value.Row {
	if len(names) == 0 {
		return row
	}
	out := make(value.Row, len(names))
	for _, n := range names {
		if v, ok := row[n]; ok {
			out[n] = v
		}
	}
	return out
}

// Collect materializes the resulting row sequence, applying Select as the
// final projection.
func (q *Query) Collect() ([]value.Row, error) {
	rows, err := q.materialize()
	if err != nil {
		return nil, err
	}
	if len(q.selectN) == 0 {
		out := make([]value.Row, len(rows))
		copy(out, rows)
		return out, nil
	}
	out := make([]value.Row, len(rows))
	for i, row := range rows {
		out[i] = project(row, q.selectN)
	}
	return out, nil
}

// Count returns the number of rows in the result.
func (q *Query) Count() (int, error) {
	rows, err := q.materialize()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CountNonNull returns the number of rows where column is present.
func (q *Query) CountNonNull(column string) (int, error) {
	rows, err := q.materialize()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if row.Get(column).Present {
			n++
		}
	}
	return n, nil
}

// Sum returns the sum of an Integer column's non-null values. Empty input
// (or an unknown/non-Integer column) sums to 0 (spec.md §4.7, §8 scenario
// 6).
func (q *Query) Sum(column string) (int64, error) {
	rows, err := q.materialize()
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, row := range rows {
		v := row.Get(column)
		if v.Present && v.Type == colftype.Integer {
			sum += int64(v.Int32)
		}
	}
	return sum, nil
}

// Avg returns the mean of an Integer column's non-null values, and false
// when there are none.
func (q *Query) Avg(column string) (float64, bool, error) {
	rows, err := q.materialize()
	if err != nil {
		return 0, false, err
	}
	var sum int64
	var n int
	for _, row := range rows {
		v := row.Get(column)
		if v.Present && v.Type == colftype.Integer {
			sum += int64(v.Int32)
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

// Min returns the minimum of an Integer column's non-null values, and false
// when there are none.
func (q *Query) Min(column string) (int32, bool, error) {
	return extremum(q, column, func(a, b int32) bool { return a < b })
}

// Max returns the maximum of an Integer column's non-null values, and false
// when there are none.
func (q *Query) Max(column string) (int32, bool, error) {
	return extremum(q, column, func(a, b int32) bool { return a > b })
}

func extremum(q *Query, column string, better func(a, b int32) bool) (int32, bool, error) {
	rows, err := q.materialize()
	if err != nil {
		return 0, false, err
	}
	var best int32
	found := false
	for _, row := range rows {
		v := row.Get(column)
		if !v.Present || v.Type != colftype.Integer {
			continue
		}
		if !found || better(v.Int32, best) {
			best = v.Int32
			found = true
		}
	}
	return best, found, nil
}

// Distinct returns the order-preserving, first-occurrence-deduplicated
// sequence of a column's (possibly-null) values. An unknown column name
// reads as a single absent value on every row, so it collapses to one
// null group rather than an empty result.
func (q *Query) Distinct(column string) ([]value.Value, error) {
	rows, err := q.materialize()
	if err != nil {
		return nil, err
	}
	seen := make(map[value.Value]bool)
	out := make([]value.Value, 0)
	for _, row := range rows {
		v := row.Get(column)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// GroupByCount maps each distinct (possibly-null) value of column to its
// count across the result.
func (q *Query) GroupByCount(column string) (map[value.Value]int, error) {
	rows, err := q.materialize()
	if err != nil {
		return nil, err
	}
	out := make(map[value.Value]int)
	for _, row := range rows {
		out[row.Get(column)]++
	}
	return out, nil
}
