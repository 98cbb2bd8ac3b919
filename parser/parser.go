// Package parser builds an *ast.Script from dply source text.
//
// It is a hand-written recursive-descent parser over a token slice with
// peek/advance/expect helpers. The grammar is given as an explicit
// right-associative rule chain, so parseOr/parseAnd/parseCmp/parseAdd/
// parseMul each follow that chain directly rather than a generic
// precedence climber.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vincev/dply/ast"
	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/lexer"
)

// Parser converts a token stream into an AST.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// Parse parses a full script into an *ast.Script.
func Parse(input string) (*ast.Script, error) {
	tokens, err := lexer.Lex(input)
	if err != nil {
		return nil, dplyerr.Parsef(ast.Span{}, "%v", err)
	}
	p := &Parser{tokens: tokens}
	return p.parseScript()
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(off int) lexer.Token {
	i := p.pos + off
	if i >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[i]
}

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func span(t lexer.Token) ast.Span {
	return ast.Span{Start: t.Pos, End: t.Pos + len(t.Val), Line: t.Line, Col: t.Col}
}

func spanFrom(start lexer.Token, end ast.Span) ast.Span {
	s := span(start)
	s.End = end.End
	return s
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, dplyerr.Parsef(span(tok), "expected %s, got %s %q", tt, tok.Type, tok.Val)
	}
	return tok, nil
}

func (p *Parser) skipNewlines() {
	for p.peek().Type == lexer.TokenNewline {
		p.advance()
	}
}

func (p *Parser) parseScript() (*ast.Script, error) {
	script := &ast.Script{}
	p.skipNewlines()
	for p.peek().Type != lexer.TokenEOF {
		pipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		script.Pipelines = append(script.Pipelines, pipe)

		if p.peek().Type == lexer.TokenSemi {
			p.advance()
			p.skipNewlines()
			continue
		}
		if p.peek().Type == lexer.TokenNewline {
			p.skipNewlines()
			continue
		}
		break
	}
	if p.peek().Type != lexer.TokenEOF {
		tok := p.peek()
		return nil, dplyerr.Parsef(span(tok), "unexpected token %s %q", tok.Type, tok.Val)
	}
	if len(script.Pipelines) == 0 {
		return nil, dplyerr.Parsef(ast.Span{}, "empty script")
	}
	return script, nil
}

func (p *Parser) parsePipeline() (*ast.Pipeline, error) {
	startTok := p.peek()
	step, err := p.parseStep()
	if err != nil {
		return nil, err
	}
	steps := []ast.Step{step}
	for p.peek().Type == lexer.TokenPipe {
		p.advance()
		p.skipNewlines()
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	last := steps[len(steps)-1]
	return ast.NewPipeline(spanFrom(startTok, last.Span()), steps), nil
}

func (p *Parser) parseStep() (ast.Step, error) {
	tok := p.peek()
	if tok.Type != lexer.TokenIdent {
		return nil, dplyerr.Parsef(span(tok), "expected a function call or identifier, got %s %q", tok.Type, tok.Val)
	}
	if p.peekAt(1).Type == lexer.TokenLParen {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		return ast.NewCallStep(call.Span(), call), nil
	}
	p.advance()
	return ast.NewVarStep(span(tok), tok.Val), nil
}

func (p *Parser) parseCall() (*ast.Call, error) {
	nameTok := p.advance()
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}

	var args []ast.Expr
	if p.peek().Type != lexer.TokenRParen {
		for {
			arg, err := p.parseArg()
			if err != nil {
				return nil, fmt.Errorf("in %s(...): %w", nameTok.Val, err)
			}
			args = append(args, arg)
			if p.peek().Type != lexer.TokenComma {
				break
			}
			p.advance()
		}
	}

	closeTok, err := p.expect(lexer.TokenRParen)
	if err != nil {
		return nil, err
	}
	return ast.NewCall(spanFrom(nameTok, span(closeTok)), strings.ToLower(nameTok.Val), args), nil
}

// parseArg parses a single call argument: "ident = expr" (assignment
// or, depending on the callee's schema, a named option) or a bare
// expression.
func (p *Parser) parseArg() (ast.Expr, error) {
	if (p.peek().Type == lexer.TokenIdent || p.peek().Type == lexer.TokenBacktickIdent) && p.peekAt(1).Type == lexer.TokenAssign {
		nameTok := p.advance()
		p.advance() // consume '='
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(spanFrom(nameTok, value.Span()), nameTok.Val, value), nil
	}
	return p.parseExpr()
}

// --- Expression parsing, following the grammar's explicit, right
// associative rule chain. ---

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.peek().Type == lexer.TokenPipe {
		p.advance()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return ast.NewLogical(combine(left.Span(), right.Span()), ast.LogicalOr, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	if p.peek().Type == lexer.TokenAmp {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		return ast.NewLogical(combine(left.Span(), right.Span()), ast.LogicalAnd, left, right), nil
	}
	return left, nil
}

var cmpOps = map[lexer.TokenType]ast.CmpOp{
	lexer.TokenEq: ast.CmpEq, lexer.TokenNe: ast.CmpNe,
	lexer.TokenLt: ast.CmpLt, lexer.TokenLe: ast.CmpLe,
	lexer.TokenGt: ast.CmpGt, lexer.TokenGe: ast.CmpGe,
}

func (p *Parser) parseCmp() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if op, ok := cmpOps[p.peek().Type]; ok {
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.NewCmp(combine(left.Span(), right.Span()), op, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	switch p.peek().Type {
	case lexer.TokenPlus, lexer.TokenMinus:
		op := ast.ArithAdd
		if p.peek().Type == lexer.TokenMinus {
			op = ast.ArithSub
		}
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return ast.NewArith(combine(left.Span(), right.Span()), op, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch p.peek().Type {
	case lexer.TokenStar, lexer.TokenSlash:
		op := ast.ArithMul
		if p.peek().Type == lexer.TokenSlash {
			op = ast.ArithDiv
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		return ast.NewArith(combine(left.Span(), right.Span()), op, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.peek().Type == lexer.TokenBang {
		tok := p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewNot(spanFrom(tok, inner.Span()), inner), nil
	}
	if p.peek().Type == lexer.TokenMinus {
		tok := p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewNeg(spanFrom(tok, inner.Span()), inner), nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenInt:
		p.advance()
		v, err := strconv.ParseInt(tok.Val, 10, 64)
		if err != nil {
			return nil, dplyerr.Parsef(span(tok), "invalid integer %q", tok.Val)
		}
		return ast.NewIntLit(span(tok), v), nil

	case lexer.TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return nil, dplyerr.Parsef(span(tok), "invalid float %q", tok.Val)
		}
		return ast.NewFloatLit(span(tok), v), nil

	case lexer.TokenString:
		p.advance()
		return ast.NewStringLit(span(tok), tok.Val), nil

	case lexer.TokenTrue:
		p.advance()
		return ast.NewBoolLit(span(tok), true), nil

	case lexer.TokenFalse:
		p.advance()
		return ast.NewBoolLit(span(tok), false), nil

	case lexer.TokenBacktickIdent:
		p.advance()
		return ast.NewIdent(span(tok), tok.Val, true), nil

	case lexer.TokenIdent:
		if p.peekAt(1).Type == lexer.TokenLParen {
			return p.parseCall()
		}
		p.advance()
		return ast.NewIdent(span(tok), tok.Val, false), nil

	case lexer.TokenLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, dplyerr.Parsef(span(tok), "unexpected token %s %q in expression", tok.Type, tok.Val)
	}
}

func combine(a, b ast.Span) ast.Span {
	return ast.Span{Start: a.Start, End: b.End, Line: a.Line, Col: a.Col}
}
