package query

import (
	"reflect"
	"testing"

	"github.com/kokes/colf/colfio"
	"github.com/kokes/colf/colftype"
	"github.com/kokes/colf/compress"
	"github.com/kokes/colf/schema"
	"github.com/kokes/colf/value"
)

func employeeFile(t *testing.T) *colfio.Reader {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "name", Type: colftype.String},
		{Name: "department", Type: colftype.String},
		{Name: "age", Type: colftype.Integer},
		{Name: "active", Type: colftype.Boolean},
	}, compress.None)
	if err != nil {
		t.Fatal(err)
	}
	type emp struct {
		name, dept string
		age        int32
		active     bool
	}
	employees := []emp{
		{"Alice", "Engineering", 30, true},
		{"Bob", "Sales", 45, true},
		{"Carol", "Engineering", 22, false},
		{"Dave", "Engineering", 25, true},
		{"Eve", "Engineering", 42, true},
		{"Frank", "Sales", 50, true},
		{"Grace", "Engineering", 19, true},
	}
	rows := make([]value.Row, len(employees))
	for i, e := range employees {
		rows[i] = value.Row{
			"name":       value.String(e.name),
			"department": value.String(e.dept),
			"age":        value.Int(e.age),
			"active":     value.Bool(e.active),
		}
	}
	path := tempQueryPath(t)
	if err := colfio.Write(s, rows, path); err != nil {
		t.Fatal(err)
	}
	r, err := colfio.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func tempQueryPath(t *testing.T) string {
	t.Helper()
	return t.TempDir() + "/employees.colf"
}

// scenario 5: query chain.
func TestQueryChainFiltersAndProjects(t *testing.T) {
	r := employeeFile(t)
	got, err := New(r).
		Filter(Equals("active", value.Bool(true))).
		Filter(Equals("department", value.String("Engineering"))).
		Filter(GreaterThan("age", 25)).
		Select("name", "age").
		Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expecting 2 rows, got %d: %+v", len(got), got)
	}
	if got[0].Get("name") != value.String("Alice") || got[0].Get("age") != value.Int(30) {
		t.Errorf("row 0: expecting Alice, 30 — got %+v", got[0])
	}
	if got[1].Get("name") != value.String("Eve") || got[1].Get("age") != value.Int(42) {
		t.Errorf("row 1: expecting Eve, 42 — got %+v", got[1])
	}
	for _, row := range got {
		if len(row) != 2 {
			t.Errorf("expecting a projected row to have exactly 2 keys, got %+v", row)
		}
	}
}

func TestQueryFilterSkipLimit(t *testing.T) {
	r := employeeFile(t)
	all, err := New(r).Filter(Equals("department", value.String("Engineering"))).Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("expecting 5 Engineering rows, got %d", len(all))
	}

	limited, err := New(r).
		Filter(Equals("department", value.String("Engineering"))).
		Skip(1).
		Limit(2).
		Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("expecting 2 rows after skip/limit, got %d", len(limited))
	}
	if !reflect.DeepEqual(limited[0], all[1]) || !reflect.DeepEqual(limited[1], all[2]) {
		t.Errorf("expecting skip/limit to preserve file order, got %+v", limited)
	}
}

func TestQueryCachesAcrossTerminalCalls(t *testing.T) {
	r := employeeFile(t)
	q := New(r).Filter(Equals("department", value.String("Sales")))
	n1, err := q.Count()
	if err != nil {
		t.Fatal(err)
	}
	n2, err := q.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n1 != n2 || n1 != 2 {
		t.Errorf("expecting a cached, stable count of 2, got %d then %d", n1, n2)
	}
}

// scenario 6: aggregations with nulls.
func ageColumnWithNulls(t *testing.T) *colfio.Reader {
	t.Helper()
	s, err := schema.New([]schema.Column{{Name: "age", Type: colftype.Integer, Nullable: true}}, compress.None)
	if err != nil {
		t.Fatal(err)
	}
	vals := []interface{}{30, nil, 35, 28, nil}
	rows := make([]value.Row, len(vals))
	for i, v := range vals {
		if v == nil {
			rows[i] = value.Row{}
			continue
		}
		rows[i] = value.Row{"age": value.Int(int32(v.(int)))}
	}
	path := tempQueryPath(t)
	if err := colfio.Write(s, rows, path); err != nil {
		t.Fatal(err)
	}
	r, err := colfio.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestAggregationsWithNulls(t *testing.T) {
	r := ageColumnWithNulls(t)
	q := New(r)

	count, err := q.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expecting count 5, got %d", count)
	}

	nonNull, err := q.CountNonNull("age")
	if err != nil {
		t.Fatal(err)
	}
	if nonNull != 3 {
		t.Errorf("expecting countNonNull 3, got %d", nonNull)
	}

	sum, err := q.Sum("age")
	if err != nil {
		t.Fatal(err)
	}
	if sum != 93 {
		t.Errorf("expecting sum 93, got %d", sum)
	}

	avg, ok, err := q.Avg("age")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || avg != 31.0 {
		t.Errorf("expecting avg 31.0, got %v (ok=%v)", avg, ok)
	}

	min, ok, err := q.Min("age")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || min != 28 {
		t.Errorf("expecting min 28, got %v (ok=%v)", min, ok)
	}

	max, ok, err := q.Max("age")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || max != 35 {
		t.Errorf("expecting max 35, got %v (ok=%v)", max, ok)
	}
}

func TestAggregationsOnEmptyResult(t *testing.T) {
	r := ageColumnWithNulls(t)
	q := New(r).Filter(Equals("age", value.Int(9999)))

	count, err := q.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expecting count 0 on an empty filter result, got %d", count)
	}
	sum, err := q.Sum("age")
	if err != nil {
		t.Fatal(err)
	}
	if sum != 0 {
		t.Errorf("expecting sum 0 on an empty filter result, got %d", sum)
	}
	if _, ok, err := q.Avg("age"); err != nil || ok {
		t.Errorf("expecting avg to be absent on an empty filter result, ok=%v err=%v", ok, err)
	}
	if _, ok, err := q.Min("age"); err != nil || ok {
		t.Errorf("expecting min to be absent on an empty filter result, ok=%v err=%v", ok, err)
	}
	if _, ok, err := q.Max("age"); err != nil || ok {
		t.Errorf("expecting max to be absent on an empty filter result, ok=%v err=%v", ok, err)
	}
}

func TestDistinctPreservesFirstOccurrenceOrder(t *testing.T) {
	r := employeeFile(t)
	distinct, err := New(r).Distinct("department")
	if err != nil {
		t.Fatal(err)
	}
	want := []value.Value{value.String("Engineering"), value.String("Sales")}
	if len(distinct) != len(want) {
		t.Fatalf("expecting %d distinct values, got %d: %+v", len(want), len(distinct), distinct)
	}
	for i := range want {
		if distinct[i] != want[i] {
			t.Errorf("position %d: expecting %+v, got %+v", i, want[i], distinct[i])
		}
	}
}

func TestGroupByCountAgreesWithDistinctAndRowCount(t *testing.T) {
	r := employeeFile(t)
	q := New(r)
	distinct, err := q.Distinct("department")
	if err != nil {
		t.Fatal(err)
	}
	counts, err := q.GroupByCount("department")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != len(distinct) {
		t.Errorf("expecting |groupByCount| == |distinct| == %d, got %d", len(distinct), len(counts))
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	rowCount, err := q.Count()
	if err != nil {
		t.Fatal(err)
	}
	if total != rowCount {
		t.Errorf("expecting groupByCount values to sum to rowCount %d, got %d", rowCount, total)
	}
	if counts[value.String("Engineering")] != 5 || counts[value.String("Sales")] != 2 {
		t.Errorf("unexpected group counts: %+v", counts)
	}
}
