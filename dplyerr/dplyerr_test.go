package dplyerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincev/dply/ast"
)

func TestErrorMessage(t *testing.T) {
	err := Schemaf(ast.Span{Line: 2, Col: 5}, "unknown column %q", "foo")
	assert.Equal(t, `schema error: unknown column "foo"`, err.Error())
	require.NotNil(t, err.Span)
	assert.Equal(t, 2, err.Span.Line)
	assert.Equal(t, 5, err.Span.Col)
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := RuntimeWrap(cause, "cannot write %s", "out.csv")
	assert.True(t, errors.Is(err, cause), "errors.Is did not find the wrapped cause")
	assert.Nil(t, err.Span, "RuntimeWrap should not carry a span")
}

func TestNoSpanVariants(t *testing.T) {
	assert.Nil(t, SignaturefNoSpan("bad %s", "arg").Span)
	assert.Nil(t, SchemafNoSpan("bad %s", "arg").Span)
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Parse:     "parse error",
		Signature: "signature error",
		Schema:    "schema error",
		Runtime:   "runtime error",
		Variable:  "variable error",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
