package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareOrdering(t *testing.T) {
	assert.Negative(t, Compare(IntVal(1), IntVal(2)), "1 should compare less than 2")
	assert.Positive(t, Compare(FloatVal(2.5), IntVal(2)), "2.5 should compare greater than 2")
	assert.Negative(t, Compare(StrVal("a"), StrVal("b")), "\"a\" should compare less than \"b\"")
}

func TestCompareNullsSortLast(t *testing.T) {
	assert.Positive(t, Compare(Null(), IntVal(1)), "a null value should compare greater than any non-null value")
	assert.Negative(t, Compare(IntVal(1), Null()), "a non-null value should compare less than a null value")
	assert.Zero(t, Compare(Null(), Null()), "two null values should compare equal")
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IntVal(1), IntVal(1)), "equal ints should be Equal")
	assert.False(t, Equal(IntVal(1), IntVal(2)), "unequal ints should not be Equal")
	assert.True(t, Equal(Null(), Null()), "two nulls should be Equal")
	assert.False(t, Equal(Null(), IntVal(0)), "null should never equal a non-null value")
}

func TestAsFloat(t *testing.T) {
	f, ok := IntVal(3).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	f, ok = FloatVal(3.5).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	_, ok = StrVal("x").AsFloat()
	assert.False(t, ok, "a string value should not convert to float")
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "42", IntVal(42).String())
}
