package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentWordPlainIdentifier(t *testing.T) {
	word, columnsOnly := currentWord(`csv("a.csv") | sel`)
	assert.Equal(t, "sel", word)
	assert.False(t, columnsOnly, "a plain identifier should not restrict to columns/variables")
}

func TestCurrentWordDotRestrictsToColumns(t *testing.T) {
	word, columnsOnly := currentWord(`filter(.nam`)
	assert.Equal(t, ".nam", word)
	assert.True(t, columnsOnly, "a leading '.' should restrict completion to columns/variables")
}

func TestCurrentWordStopsAtDelimiters(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"select(a, b", "b"},
		{"df | show", "show"},
		{"mutate(x = y", "y"},
		{"", ""},
	}
	for _, c := range cases {
		word, _ := currentWord(c.line)
		assert.Equalf(t, c.want, word, "currentWord(%q)", c.line)
	}
}
