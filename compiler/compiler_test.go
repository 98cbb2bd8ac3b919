package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/parser"
	"github.com/vincev/dply/plan"
)

func testSchema() plan.Schema {
	return plan.Schema{
		{Name: "price", Type: plan.Float64},
		{Name: "qty", Type: plan.Int64},
		{Name: "category", Type: plan.Utf8},
	}
}

// parseFilterExpr parses src as a single filter() argument and returns
// its AST expression tree.
func parseFilterExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	script, err := parser.Parse(`csv("a") | filter(` + src + `)`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	return call.Args[0]
}

func TestCompileRowFilter(t *testing.T) {
	schema := testSchema()
	row := plan.Row{plan.FloatVal(10), plan.IntVal(2), plan.StrVal("a")}

	e, err := CompileRow(parseFilterExpr(t, "price * qty > 15"), schema)
	require.NoError(t, err)

	v, err := e.Eval(schema, row)
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b, "10*2=20 should be > 15")
}

func TestCompileRowUnknownColumn(t *testing.T) {
	_, err := CompileRow(parseFilterExpr(t, "missing > 1"), testSchema())
	assert.Error(t, err)
}

func TestCompileMutateBroadcastAgg(t *testing.T) {
	schema := testSchema()
	rows := []plan.Row{
		{plan.FloatVal(10), plan.IntVal(1), plan.StrVal("a")},
		{plan.FloatVal(20), plan.IntVal(1), plan.StrVal("b")},
	}
	script, err := parser.Parse(`csv("a") | mutate(centered = price - mean(price))`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	asn := call.Args[0].(*ast.Assign)

	e, err := CompileMutate(asn.Value, schema, rows)
	require.NoError(t, err)

	v, err := e.Eval(schema, rows[0])
	require.NoError(t, err)
	f, ok := v.AsFloat()
	require.True(t, ok)
	assert.Equal(t, -5.0, f, "10 - mean(10,20)=15")
}

func TestCompileBroadcastAggNotAllowedInFilter(t *testing.T) {
	// CompileRow passes rows=nil, so a bare mean() call is not treated
	// as a broadcast aggregate and is rejected as an unsupported
	// expression in this context.
	_, err := CompileRow(parseFilterExpr(t, "mean(price) > 1"), testSchema())
	assert.Error(t, err)
}

func TestCompileAggSum(t *testing.T) {
	schema := testSchema()
	script, err := parser.Parse(`csv("a") | group_by(category) | summarize(total = sum(price))`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[2].(*ast.CallStep).Call
	asn := call.Args[0].(*ast.Assign)

	agg, err := CompileAgg(asn.Value, schema)
	require.NoError(t, err)

	rows := []plan.Row{
		{plan.FloatVal(10), plan.IntVal(1), plan.StrVal("a")},
		{plan.FloatVal(5), plan.IntVal(1), plan.StrVal("a")},
	}
	v, err := agg.Eval(schema, rows)
	require.NoError(t, err)
	f, ok := v.AsFloat()
	require.True(t, ok)
	assert.Equal(t, 15.0, f)
}

func TestCompileAggN(t *testing.T) {
	schema := testSchema()
	nCall := ast.NewCall(ast.Span{}, "n", nil)
	agg, err := CompileAgg(nCall, schema)
	require.NoError(t, err)

	v, err := agg.Eval(schema, make([]plan.Row, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int)
}

func TestCompileAggRejectsNonCall(t *testing.T) {
	lit := ast.NewIntLit(ast.Span{}, 1)
	_, err := CompileAgg(lit, testSchema())
	assert.Error(t, err)
}

func testListSchema() plan.Schema {
	return plan.Schema{
		{Name: "tags", Type: plan.ListType, Elem: plan.Int64},
		{Name: "category", Type: plan.Utf8},
	}
}

func TestCompileRowContainsStringColumn(t *testing.T) {
	schema := testSchema()
	row := plan.Row{plan.FloatVal(10), plan.IntVal(2), plan.StrVal("produce")}

	e, err := CompileRow(parseFilterExpr(t, `contains(category, "prod")`), schema)
	require.NoError(t, err)

	v, err := e.Eval(schema, row)
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestCompileRowContainsNumericPatternOnListColumn(t *testing.T) {
	schema := testListSchema()
	row := plan.Row{plan.ListVal([]plan.Value{plan.IntVal(3), plan.IntVal(5)}), plan.StrVal("a")}

	e, err := CompileRow(parseFilterExpr(t, "contains(tags, 5)"), schema)
	require.NoError(t, err)

	v, err := e.Eval(schema, row)
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b, "tags=[3,5] should contain the numeric literal 5")

	missing := plan.Row{plan.ListVal([]plan.Value{plan.IntVal(3)}), plan.StrVal("a")}
	v, err = e.Eval(schema, missing)
	require.NoError(t, err)
	b, ok = v.AsBool()
	require.True(t, ok)
	assert.False(t, b, "tags=[3] should not contain the numeric literal 5")
}

func TestCompileRowContainsFloatPatternOnListColumn(t *testing.T) {
	schema := plan.Schema{{Name: "scores", Type: plan.ListType, Elem: plan.Float64}}
	row := plan.Row{plan.ListVal([]plan.Value{plan.FloatVal(1.5), plan.FloatVal(2.5)})}

	e, err := CompileRow(parseFilterExpr(t, "contains(scores, 2.5)"), schema)
	require.NoError(t, err)

	v, err := e.Eval(schema, row)
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestCompileRowContainsRejectsNumericPatternOnStringColumn(t *testing.T) {
	_, err := CompileRow(parseFilterExpr(t, "contains(category, 5)"), testSchema())
	assert.Error(t, err, "a numeric pattern is only valid against a list column")
}
