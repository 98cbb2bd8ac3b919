package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaIntStr() Schema {
	return Schema{
		{Name: "id", Type: Int64},
		{Name: "name", Type: Utf8},
	}
}

func rowsIntStr() []Row {
	return []Row{
		{IntVal(1), StrVal("a")},
		{IntVal(2), StrVal("b")},
		{IntVal(3), StrVal("c")},
	}
}

func TestFrameProject(t *testing.T) {
	f := fromRows(schemaIntStr(), rowsIntStr())
	out, err := f.Project([]ColumnRef{{Name: "name", As: "label"}})
	require.NoError(t, err)

	schema, err := out.Schema()
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "label", schema[0].Name)

	rows, err := out.Materialize()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0][0].Str)
}

func TestFrameFilter(t *testing.T) {
	f := fromRows(schemaIntStr(), rowsIntStr())
	pred := CmpExpr{Op: CmpGt, Lhs: ColExpr{Index: 0}, Rhs: LitExpr{Value: IntVal(1)}}
	out, err := f.Filter(pred)
	require.NoError(t, err)

	rows, err := out.Materialize()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFrameMutate(t *testing.T) {
	f := fromRows(schemaIntStr(), rowsIntStr())
	assigns := []MutateAssignment{
		{Name: "doubled", Type: Int64, Expr: ArithExpr{Op: ArithMul, Lhs: ColExpr{Index: 0}, Rhs: LitExpr{Value: IntVal(2)}}},
	}
	out, err := f.Mutate(assigns)
	require.NoError(t, err)

	rows, err := out.Materialize()
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows[1][2].Int, "expected doubled=4 for id=2")
}

func TestFrameMutateRejectsAgg(t *testing.T) {
	f := fromRows(schemaIntStr(), rowsIntStr())
	assigns := []MutateAssignment{{Name: "total", Type: Int64, Expr: AggCall{Kind: AggN}}}
	out, err := f.Mutate(assigns)
	require.NoError(t, err)

	_, err = out.Materialize()
	assert.Error(t, err, "expected an error mutating with an Agg expression")
}

func TestFrameSortNullsLast(t *testing.T) {
	schema := Schema{{Name: "v", Type: Int64}}
	rows := []Row{{IntVal(2)}, {Null()}, {IntVal(1)}}
	f := fromRows(schema, rows)
	out, err := f.Sort([]SortKey{{Index: 0, Desc: true}})
	require.NoError(t, err)

	sorted, err := out.Materialize()
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	assert.Equal(t, int64(2), sorted[0][0].Int)
	assert.Equal(t, int64(1), sorted[1][0].Int)
	assert.True(t, sorted[2][0].IsNull(), "nulls should sort last regardless of desc")
}

func TestFrameDistinct(t *testing.T) {
	schema := Schema{{Name: "v", Type: Int64}}
	rows := []Row{{IntVal(1)}, {IntVal(1)}, {IntVal(2)}}
	f := fromRows(schema, rows)
	out, err := f.Distinct(nil)
	require.NoError(t, err)

	got, err := out.Materialize()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFrameGroupAggregateCount(t *testing.T) {
	schema := Schema{{Name: "category", Type: Utf8}, {Name: "n", Type: Int64}}
	rows := []Row{
		{StrVal("a"), IntVal(1)},
		{StrVal("a"), IntVal(2)},
		{StrVal("b"), IntVal(3)},
	}
	f := fromRows(schema, rows)
	aggs := []MutateAssignment{{Name: "n", Type: Int64, Expr: AggCall{Kind: AggN}}}
	out, err := f.GroupAggregate([]int{0}, []string{"category"}, aggs)
	require.NoError(t, err)

	got, err := out.Materialize()
	require.NoError(t, err)
	require.Len(t, got, 2)

	counts := map[string]int64{}
	for _, r := range got {
		counts[r[0].Str] = r[1].Int
	}
	assert.Equal(t, int64(2), counts["a"])
	assert.Equal(t, int64(1), counts["b"])
}

func TestFrameGroupAggregateUngrouped(t *testing.T) {
	schema := Schema{{Name: "v", Type: Int64}}
	rows := []Row{{IntVal(1)}, {IntVal(2)}, {IntVal(3)}}
	f := fromRows(schema, rows)
	aggs := []MutateAssignment{{Name: "total", Type: Int64, Expr: AggCall{Kind: AggSum, Col: ColExpr{Index: 0}}}}
	out, err := f.GroupAggregate(nil, nil, aggs)
	require.NoError(t, err)

	got, err := out.Materialize()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(6), got[0][0].Int)
}

func TestFrameJoinInner(t *testing.T) {
	left := fromRows(Schema{{Name: "id", Type: Int64}, {Name: "name", Type: Utf8}}, []Row{
		{IntVal(1), StrVal("a")},
		{IntVal(2), StrVal("b")},
	})
	right := fromRows(Schema{{Name: "id", Type: Int64}, {Name: "total", Type: Int64}}, []Row{
		{IntVal(1), IntVal(100)},
		{IntVal(3), IntVal(300)},
	})
	out, err := left.Join(right, JoinInner, []JoinPredicate{{LeftIndex: 0, RightIndex: 0}})
	require.NoError(t, err)

	rows, err := out.Materialize()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFrameCloneIndependentAfterMaterialize(t *testing.T) {
	f := fromRows(schemaIntStr(), rowsIntStr())
	_, err := f.Materialize()
	require.NoError(t, err)

	clone := f.Clone()
	rows, err := clone.Materialize()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
