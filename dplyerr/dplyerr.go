// Package dplyerr defines the error kinds raised across the dply
// pipeline: parse, signature, schema, runtime, and variable errors.
// Each carries an optional source span so the CLI can print a
// line:col location.
package dplyerr

import (
	"fmt"

	"github.com/vincev/dply/ast"
)

// Kind identifies which stage raised the error.
type Kind int

const (
	Parse Kind = iota
	Signature
	Schema
	Runtime
	Variable
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse error"
	case Signature:
		return "signature error"
	case Schema:
		return "schema error"
	case Runtime:
		return "runtime error"
	case Variable:
		return "variable error"
	default:
		return "error"
	}
}

// Error is a dply diagnostic: a kind, a message, and an optional span.
type Error struct {
	Kind    Kind
	Message string
	Span    *ast.Span
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func newf(kind Kind, span *ast.Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// Parsef builds a ParseError at span.
func Parsef(span ast.Span, format string, args ...any) *Error {
	return newf(Parse, &span, format, args...)
}

// Signaturef builds a SignatureError at span.
func Signaturef(span ast.Span, format string, args ...any) *Error {
	return newf(Signature, &span, format, args...)
}

// SignaturefNoSpan builds a SignatureError without a span.
func SignaturefNoSpan(format string, args ...any) *Error {
	return newf(Signature, nil, format, args...)
}

// Schemaf builds a SchemaError at span.
func Schemaf(span ast.Span, format string, args ...any) *Error {
	return newf(Schema, &span, format, args...)
}

// SchemafNoSpan builds a SchemaError without a span.
func SchemafNoSpan(format string, args ...any) *Error {
	return newf(Schema, nil, format, args...)
}

// Runtimef builds a RuntimeError without a span (most runtime errors
// originate from the OS or the storage layer, which has no AST span).
func Runtimef(format string, args ...any) *Error {
	return newf(Runtime, nil, format, args...)
}

// RuntimeWrap builds a RuntimeError wrapping an underlying error.
func RuntimeWrap(err error, format string, args ...any) *Error {
	e := newf(Runtime, nil, format, args...)
	e.Wrapped = err
	return e
}

// Variablef builds a VariableError at span.
func Variablef(span ast.Span, format string, args ...any) *Error {
	return newf(Variable, &span, format, args...)
}
