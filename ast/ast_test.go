package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLitConstructors(t *testing.T) {
	i := NewIntLit(Span{}, 42)
	assert.Equal(t, LitInt, i.Kind)
	assert.EqualValues(t, 42, i.Int)

	f := NewFloatLit(Span{}, 3.5)
	assert.Equal(t, LitFloat, f.Kind)
	assert.Equal(t, 3.5, f.Float)

	s := NewStringLit(Span{}, "x")
	assert.Equal(t, LitString, s.Kind)
	assert.Equal(t, "x", s.Str)

	b := NewBoolLit(Span{}, true)
	assert.Equal(t, LitBool, b.Kind)
	assert.True(t, b.Bool)
}

func TestNodesImplementExprInterface(t *testing.T) {
	nodes := []Expr{
		NewIntLit(Span{}, 1),
		NewIdent(Span{}, "x", false),
		NewCall(Span{}, "f", nil),
		NewAssign(Span{}, "x", NewIntLit(Span{}, 1)),
		NewCmp(Span{}, CmpEq, NewIntLit(Span{}, 1), NewIntLit(Span{}, 1)),
		NewLogical(Span{}, LogicalAnd, NewBoolLit(Span{}, true), NewBoolLit(Span{}, true)),
		NewArith(Span{}, ArithAdd, NewIntLit(Span{}, 1), NewIntLit(Span{}, 1)),
		NewNot(Span{}, NewBoolLit(Span{}, true)),
		NewNeg(Span{}, NewIntLit(Span{}, 1)),
	}
	for _, n := range nodes {
		assert.NotNil(t, n)
	}
}

func TestStepsImplementStepInterface(t *testing.T) {
	steps := []Step{
		NewCallStep(Span{}, NewCall(Span{}, "show", nil)),
		NewVarStep(Span{}, "df"),
	}
	for _, s := range steps {
		assert.NotNil(t, s)
	}
}

func TestPipelineAndScript(t *testing.T) {
	steps := []Step{NewVarStep(Span{}, "a"), NewVarStep(Span{}, "b")}
	p := NewPipeline(Span{Line: 1, Col: 1}, steps)
	require.Len(t, p.Steps, 2)

	script := &Script{Pipelines: []*Pipeline{p}}
	assert.Len(t, script.Pipelines, 1)
}
