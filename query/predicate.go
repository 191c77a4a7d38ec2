// Package query implements the post-read query evaluator (spec.md §4.7): a
// fluent builder over a colfio.Reader offering filter, projection, limit/
// skip and scalar aggregation, plus a closed predicate algebra.
//
// Grounded on the teacher's query.Query/query.Result
// (src/query/query.go) for the fluent-builder-over-a-reader shape and its
// materialize-once-and-reuse caching — NOT on query/expr, the teacher's
// hand-rolled SQL tokenizer/parser, which implements an open-ended
// expression grammar far beyond spec.md §4.7's closed, 11-predicate
// algebra. Predicates here are Go-level constructors returning a small
// closed interface, evaluated by straight type-switch dispatch in the
// style of column/aggregations.go's per-Dtype switches, not parsed text.
package query

import (
	"strings"

	"github.com/kokes/colf/colftype"
	"github.com/kokes/colf/value"
)

// Predicate is a pure function of a single row (spec.md §4.7: "All
// comparisons are pure functions of a single row"). A column missing from
// the row reads as null and never raises an error: the value predicates
// (comparisons, Contains, StartsWith, In) are false for it, while IsNull is
// true and IsNotNull false, so an unknown column name is not told apart
// from a null value.
type Predicate interface {
	Eval(row value.Row) bool
}

type predicateFunc func(value.Row) bool

func (f predicateFunc) Eval(row value.Row) bool { return f(row) }

// Equals matches rows where column equals v. A null value (row or operand)
// never equals anything, including another null, under this predicate —
// use IsNull to test for nullness.
func Equals(column string, v value.Value) Predicate {
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		return rv.Present && v.Present && rv.Type == v.Type && valuesEqual(rv, v)
	})
}

// NotEquals is the negation of Equals, but still false (not true) when
// either side is null or of a different type — "not equal" requires both
// sides to be actual comparable values.
func NotEquals(column string, v value.Value) Predicate {
	eq := Equals(column, v)
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		if !rv.Present || !v.Present || rv.Type != v.Type {
			return false
		}
		return !eq.Eval(row)
	})
}

func valuesEqual(a, b value.Value) bool {
	return compareByType(a, b)
}

func compareByType(a, b value.Value) bool {
	switch a.Type {
	case colftype.Integer:
		return a.Int32 == b.Int32
	case colftype.String:
		return a.Str == b.Str
	case colftype.Boolean:
		return a.Bool == b.Bool
	default:
		return false
	}
}

// GreaterThan, LessThan, GreaterThanOrEqual, LessThanOrEqual are defined
// only for Integer columns (spec.md §4.7): any other type, or null, yields
// false.

// GreaterThan matches rows where the Integer column's value is > threshold.
func GreaterThan(column string, threshold int32) Predicate {
	return numericPredicate(column, func(v int32) bool { return v > threshold })
}

// LessThan matches rows where the Integer column's value is < threshold.
func LessThan(column string, threshold int32) Predicate {
	return numericPredicate(column, func(v int32) bool { return v < threshold })
}

// GreaterThanOrEqual matches rows where the Integer column's value is >=
// threshold.
func GreaterThanOrEqual(column string, threshold int32) Predicate {
	return numericPredicate(column, func(v int32) bool { return v >= threshold })
}

// LessThanOrEqual matches rows where the Integer column's value is <=
// threshold.
func LessThanOrEqual(column string, threshold int32) Predicate {
	return numericPredicate(column, func(v int32) bool { return v <= threshold })
}

func numericPredicate(column string, cmp func(int32) bool) Predicate {
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		if !rv.Present || !isInteger(rv) {
			return false
		}
		return cmp(rv.Int32)
	})
}

func isInteger(v value.Value) bool {
	return v.Type == colftype.Integer
}

func isString(v value.Value) bool {
	return v.Type == colftype.String
}

// IsNull matches rows where column is absent.
func IsNull(column string) Predicate {
	return predicateFunc(func(row value.Row) bool {
		return !row.Get(column).Present
	})
}

// IsNotNull matches rows where column is present.
func IsNotNull(column string) Predicate {
	return predicateFunc(func(row value.Row) bool {
		return row.Get(column).Present
	})
}

// Contains matches rows where the String column's value contains substr.
func Contains(column, substr string) Predicate {
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		if !rv.Present || !isString(rv) {
			return false
		}
		return strings.Contains(rv.Str, substr)
	})
}

// StartsWith matches rows where the String column's value starts with
// prefix.
func StartsWith(column, prefix string) Predicate {
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		if !rv.Present || !isString(rv) {
			return false
		}
		return strings.HasPrefix(rv.Str, prefix)
	})
}

// In matches rows whose column value equals any member of set.
func In(column string, set []value.Value) Predicate {
	return predicateFunc(func(row value.Row) bool {
		rv := row.Get(column)
		if !rv.Present {
			return false
		}
		for _, v := range set {
			if v.Present && v.Type == rv.Type && compareByType(rv, v) {
				return true
			}
		}
		return false
	})
}

// And combinator: true iff every operand is true (vacuously true for zero
// operands).
func And(preds ...Predicate) Predicate {
	return predicateFunc(func(row value.Row) bool {
		for _, p := range preds {
			if !p.Eval(row) {
				return false
			}
		}
		return true
	})
}

// Or combinator: true iff at least one operand is true (vacuously false
// for zero operands).
func Or(preds ...Predicate) Predicate {
	return predicateFunc(func(row value.Row) bool {
		for _, p := range preds {
			if p.Eval(row) {
				return true
			}
		}
		return false
	})
}

// Not negates p.
func Not(p Predicate) Predicate {
	return predicateFunc(func(row value.Row) bool {
		return !p.Eval(row)
	})
}
