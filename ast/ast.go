// Package ast defines the dply pipeline language's abstract syntax tree.
//
// Every node is a member of a closed sum type (Expr or Step), matched
// by a type switch in the signature checker, compiler, and evaluator.
// There is no open polymorphism: adding a new node kind means touching
// every switch, by design.
package ast

// Span is a source location used for diagnostics.
type Span struct {
	Start, End int // byte offsets
	Line, Col  int // 1-based line/column of Start
}

// Expr is an expression node: a literal, identifier, call, or operator
// tree appearing as a function argument or inside filter/mutate/arrange.
type Expr interface {
	exprNode()
	Span() Span
}

type base struct{ span Span }

func (b base) Span() Span { return b.span }

// Lit is a literal value: int, float, string, or bool.
type Lit struct {
	base
	Kind  LitKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (*Lit) exprNode() {}

// LitKind identifies which field of Lit holds the value.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitString
	LitBool
)

// NewIntLit builds an integer literal expression.
func NewIntLit(span Span, v int64) *Lit { return &Lit{base: base{span}, Kind: LitInt, Int: v} }

// NewFloatLit builds a float literal expression.
func NewFloatLit(span Span, v float64) *Lit { return &Lit{base: base{span}, Kind: LitFloat, Float: v} }

// NewStringLit builds a string literal expression.
func NewStringLit(span Span, v string) *Lit { return &Lit{base: base{span}, Kind: LitString, Str: v} }

// NewBoolLit builds a boolean literal expression.
func NewBoolLit(span Span, v bool) *Lit { return &Lit{base: base{span}, Kind: LitBool, Bool: v} }

// Ident is a bare or back-tick quoted identifier: a column name, a
// pipeline variable, or (at the call site) a function name.
type Ident struct {
	base
	Name   string
	Quoted bool // true if written with back ticks
}

func (*Ident) exprNode() {}

// NewIdent builds an identifier expression.
func NewIdent(span Span, name string, quoted bool) *Ident {
	return &Ident{base: base{span}, Name: name, Quoted: quoted}
}

// Call is a function call: name(args...). Used for pipeline steps,
// selector predicates (starts_with), aggregates (mean(x)), and
// mutate helpers (dt(...), field(...), desc(...)).
type Call struct {
	base
	Name string
	Args []Expr
}

func (*Call) exprNode() {}

// NewCall builds a function call expression.
func NewCall(span Span, name string, args []Expr) *Call {
	return &Call{base: base{span}, Name: name, Args: args}
}

// Assign is "target = value". The parser produces this for every
// "ident = expr" argument regardless of the callee; whether it means
// a new/aliased output column (rename, select, mutate, summarize) or
// a named option (csv, json, parquet, config, count, relocate) is
// decided later by the signature checker from the callee's schema,
// per the language's disambiguation-by-schema rule.
type Assign struct {
	base
	Target string
	Value  Expr
}

func (*Assign) exprNode() {}

// NewAssign builds an assignment expression.
func NewAssign(span Span, target string, value Expr) *Assign {
	return &Assign{base: base{span}, Target: target, Value: value}
}

// CmpOp is a comparison operator.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Cmp is a comparison expression: lhs OP rhs.
type Cmp struct {
	base
	Op       CmpOp
	Lhs, Rhs Expr
}

func (*Cmp) exprNode() {}

// NewCmp builds a comparison expression.
func NewCmp(span Span, op CmpOp, lhs, rhs Expr) *Cmp {
	return &Cmp{base: base{span}, Op: op, Lhs: lhs, Rhs: rhs}
}

// LogicalOp is a boolean-combinator operator.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// Logical is a logical combination: lhs & rhs or lhs | rhs.
type Logical struct {
	base
	Op       LogicalOp
	Lhs, Rhs Expr
}

func (*Logical) exprNode() {}

// NewLogical builds a logical expression.
func NewLogical(span Span, op LogicalOp, lhs, rhs Expr) *Logical {
	return &Logical{base: base{span}, Op: op, Lhs: lhs, Rhs: rhs}
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	ArithAdd ArithOp = iota
	ArithSub
	ArithMul
	ArithDiv
)

// Arith is an arithmetic expression: lhs OP rhs, valid inside mutate.
type Arith struct {
	base
	Op       ArithOp
	Lhs, Rhs Expr
}

func (*Arith) exprNode() {}

// NewArith builds an arithmetic expression.
func NewArith(span Span, op ArithOp, lhs, rhs Expr) *Arith {
	return &Arith{base: base{span}, Op: op, Lhs: lhs, Rhs: rhs}
}

// Not negates a boolean expression: !expr.
type Not struct {
	base
	Inner Expr
}

func (*Not) exprNode() {}

// NewNot builds a negation expression.
func NewNot(span Span, inner Expr) *Not { return &Not{base: base{span}, Inner: inner} }

// Neg negates a numeric expression: -expr.
type Neg struct {
	base
	Inner Expr
}

func (*Neg) exprNode() {}

// NewNeg builds a unary-minus expression.
func NewNeg(span Span, inner Expr) *Neg { return &Neg{base: base{span}, Inner: inner} }

// Step is one element of a pipeline: a function call or a bare
// identifier (variable bind/dereference).
type Step interface {
	stepNode()
	Span() Span
}

// CallStep is a function-call pipeline step, e.g. filter(x > 1).
type CallStep struct {
	base
	Call *Call
}

func (*CallStep) stepNode() {}

// NewCallStep builds a function-call step.
func NewCallStep(span Span, call *Call) *CallStep {
	return &CallStep{base: base{span}, Call: call}
}

// VarStep is a bare-identifier pipeline step: binds (not first step)
// or dereferences (first step) a pipeline variable.
type VarStep struct {
	base
	Name string
}

func (*VarStep) stepNode() {}

// NewVarStep builds a bare-identifier step.
func NewVarStep(span Span, name string) *VarStep { return &VarStep{base: base{span}, Name: name} }

// Pipeline is a non-empty ordered sequence of steps joined by '|'.
type Pipeline struct {
	Steps []Step
	span  Span
}

// NewPipeline builds a pipeline from its steps.
func NewPipeline(span Span, steps []Step) *Pipeline { return &Pipeline{Steps: steps, span: span} }

// Span returns the pipeline's source span.
func (p *Pipeline) Span() Span { return p.span }

// Script is an ordered sequence of one or more pipelines.
type Script struct {
	Pipelines []*Pipeline
}
