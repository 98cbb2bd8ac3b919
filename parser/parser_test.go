package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincev/dply/ast"
)

func TestParsePipelineSteps(t *testing.T) {
	script, err := Parse(`csv("a.csv") | filter(x > 1) | select(x, y)`)
	require.NoError(t, err)
	require.Len(t, script.Pipelines, 1)
	steps := script.Pipelines[0].Steps
	require.Len(t, steps, 3)
	for i, name := range []string{"csv", "filter", "select"} {
		cs, ok := steps[i].(*ast.CallStep)
		require.Truef(t, ok, "step %d: got %T, want *ast.CallStep", i, steps[i])
		assert.Equalf(t, name, cs.Call.Name, "step %d", i)
	}
}

func TestParseVarStepBindAndDeref(t *testing.T) {
	script, err := Parse("csv(\"a.csv\") | orders\norders | show()")
	require.NoError(t, err)
	require.Len(t, script.Pipelines, 2)

	bind, ok := script.Pipelines[0].Steps[1].(*ast.VarStep)
	require.True(t, ok)
	assert.Equal(t, "orders", bind.Name)

	deref, ok := script.Pipelines[1].Steps[0].(*ast.VarStep)
	require.True(t, ok)
	assert.Equal(t, "orders", deref.Name)
}

func TestParseMultiplePipelinesSemicolon(t *testing.T) {
	script, err := Parse(`csv("a.csv") | show(); csv("b.csv") | show()`)
	require.NoError(t, err)
	assert.Len(t, script.Pipelines, 2)
}

func TestParseExprPrecedence(t *testing.T) {
	// a + b * c should parse as a + (b * c): Arith(Add, a, Arith(Mul, b, c))
	script, err := Parse(`csv("a") | filter(a + b * c > 0)`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	cmp := call.Args[0].(*ast.Cmp)
	add, ok := cmp.Lhs.(*ast.Arith)
	require.True(t, ok)
	assert.Equal(t, ast.ArithAdd, add.Op)
	mul, ok := add.Rhs.(*ast.Arith)
	require.True(t, ok)
	assert.Equal(t, ast.ArithMul, mul.Op)
}

func TestParseLogicalPrecedence(t *testing.T) {
	// a == 1 & b == 2 | c == 3 should parse as (a==1 & b==2) | (c==3):
	// '&' binds tighter than '|' since parseOr calls parseAnd.
	script, err := Parse(`csv("a") | filter(a == 1 & b == 2 | c == 3)`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	or, ok := call.Args[0].(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, ast.LogicalOr, or.Op)
	and, ok := or.Lhs.(*ast.Logical)
	require.True(t, ok)
	assert.Equal(t, ast.LogicalAnd, and.Op)
}

func TestParseNamedArgs(t *testing.T) {
	script, err := Parse(`csv("a.csv", overwrite = true) | show()`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[0].(*ast.CallStep).Call
	require.Len(t, call.Args, 2)
	asn, ok := call.Args[1].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "overwrite", asn.Target)
	lit, ok := asn.Value.(*ast.Lit)
	require.True(t, ok)
	assert.Equal(t, ast.LitBool, lit.Kind)
	assert.True(t, lit.Bool)
}

func TestParseBacktickIdent(t *testing.T) {
	script, err := Parse("csv(\"a\") | select(`col with spaces`)")
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	id, ok := call.Args[0].(*ast.Ident)
	require.True(t, ok)
	assert.Equal(t, "col with spaces", id.Name)
	assert.True(t, id.Quoted)
}

func TestParseUnaryOperators(t *testing.T) {
	script, err := Parse(`csv("a") | filter(!done & x == -1)`)
	require.NoError(t, err)
	call := script.Pipelines[0].Steps[1].(*ast.CallStep).Call
	and := call.Args[0].(*ast.Logical)
	_, ok := and.Lhs.(*ast.Not)
	assert.True(t, ok, "got %#v, want *ast.Not", and.Lhs)
	cmp := and.Rhs.(*ast.Cmp)
	_, ok = cmp.Rhs.(*ast.Neg)
	assert.True(t, ok, "got %#v, want *ast.Neg", cmp.Rhs)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"select(x",
		"| filter(x)",
		"csv(\"a\") |",
		"csv(\"a\") | 123",
	}
	for _, src := range cases {
		_, err := Parse(src)
		assert.Errorf(t, err, "Parse(%q)", src)
	}
}
