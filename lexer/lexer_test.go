package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexPunctuation(t *testing.T) {
	toks, err := Lex(`csv("a.csv") | filter(x >= 1 & y != 2)`)
	require.NoError(t, err)
	want := []TokenType{
		TokenIdent, TokenLParen, TokenString, TokenRParen,
		TokenPipe, TokenIdent, TokenLParen, TokenIdent, TokenGe, TokenInt,
		TokenAmp, TokenIdent, TokenNe, TokenInt, TokenRParen, TokenEOF,
	}
	require.Len(t, toks, len(want))
	for i, tt := range want {
		assert.Equalf(t, tt, toks[i].Type, "token %d", i)
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := Lex(`"a\n\tb\"c"`)
	require.NoError(t, err)
	require.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "a\n\tb\"c", toks[0].Val)
}

func TestLexBacktickIdent(t *testing.T) {
	toks, err := Lex("`col with spaces`")
	require.NoError(t, err)
	require.Equal(t, TokenBacktickIdent, toks[0].Type)
	assert.Equal(t, "col with spaces", toks[0].Val)
}

func TestLexNumbers(t *testing.T) {
	toks, err := Lex("42 3.14 7")
	require.NoError(t, err)
	assert.Equal(t, TokenInt, toks[0].Type)
	assert.Equal(t, "42", toks[0].Val)
	assert.Equal(t, TokenFloat, toks[1].Type)
	assert.Equal(t, "3.14", toks[1].Val)
	assert.Equal(t, TokenInt, toks[2].Type)
	assert.Equal(t, "7", toks[2].Val)
}

func TestLexComment(t *testing.T) {
	toks, err := Lex("select(x) # a comment\nshow()")
	require.NoError(t, err)
	var kinds []TokenType
	for _, tok := range toks {
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{
		TokenIdent, TokenLParen, TokenIdent, TokenRParen,
		TokenNewline, TokenIdent, TokenLParen, TokenRParen, TokenEOF,
	}
	assert.Equal(t, want, kinds)
}

func TestLexPositions(t *testing.T) {
	toks, err := Lex("ab\ncd")
	require.NoError(t, err)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Col)
	// toks[1] is the newline, toks[2] is "cd" on line 2.
	assert.Equal(t, 2, toks[2].Line)
	assert.Equal(t, 1, toks[2].Col)
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := Lex(`"unterminated`)
	assert.Error(t, err)
}

func TestLexUnexpectedChar(t *testing.T) {
	_, err := Lex("select(@)")
	assert.Error(t, err)
}
